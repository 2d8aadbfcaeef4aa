package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lapar/orderbell/internal/pkg/models"
)

// Claims represents standard JWT claims plus the identity attributes
// used for notification routing.
type Claims struct {
	UserID       int64           `json:"user_id"`
	UserType     models.UserType `json:"user_type"`
	RestaurantID *int64          `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken generates a signed token carrying the identity
// attributes.
func GenerateToken(userID int64, userType models.UserType, restaurantID *int64, cfg models.JWTConfig) (string, int64, error) {
	expirationTime := time.Now().Add(time.Duration(cfg.Expiration) * time.Minute)

	claims := Claims{
		UserID:       userID,
		UserType:     userType,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			Issuer:    cfg.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", 0, err
	}

	return tokenString, expirationTime.Unix(), nil
}

// ValidateToken validates a token and returns its claims.
func ValidateToken(tokenString string, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// Identity converts the claims into routing identity attributes.
func (c *Claims) Identity() models.Identity {
	userID := c.UserID
	userType := c.UserType
	return models.Identity{
		UserID:       &userID,
		UserType:     &userType,
		RestaurantID: c.RestaurantID,
	}
}
