package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapar/orderbell/internal/pkg/constants"
	"github.com/lapar/orderbell/internal/pkg/models"
)

// fakeBroadcaster records every broadcast call.
type fakeBroadcaster struct {
	notifications []*models.Notification
	filters       []models.Filter
	delivered     int
	count         int
}

func (f *fakeBroadcaster) Broadcast(n *models.Notification, filter models.Filter) int {
	f.notifications = append(f.notifications, n)
	f.filters = append(f.filters, filter)
	return f.delivered
}

func (f *fakeBroadcaster) Count() int {
	return f.count
}

// fakeRepo records appended notifications per scope.
type fakeRepo struct {
	appended  map[string][]*models.Notification
	appendErr error
	marked    []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appended: make(map[string][]*models.Notification)}
}

func (f *fakeRepo) Append(ctx context.Context, scope string, n *models.Notification) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended[scope] = append(f.appended[scope], n)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, scope string) ([]models.Notification, error) {
	out := make([]models.Notification, 0, len(f.appended[scope]))
	for _, n := range f.appended[scope] {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, scope, notificationID string) error {
	f.marked = append(f.marked, scope+"/"+notificationID)
	return nil
}

func TestBroadcast_AssignsIDTimestampAndUnread(t *testing.T) {
	broadcaster := &fakeBroadcaster{delivered: 1}
	uc := NewNotifyUC(broadcaster, newFakeRepo())

	n := &models.Notification{Type: constants.EventNewOrder, Title: "x", Message: "y", Read: true}
	delivered, err := uc.Broadcast(context.Background(), n, models.Filter{})

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Timestamp.IsZero())
	assert.False(t, n.Read)
}

func TestBroadcast_KeepsPresetIDAndTimestamp(t *testing.T) {
	uc := NewNotifyUC(&fakeBroadcaster{}, newFakeRepo())

	ts := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	n := &models.Notification{ID: "preset", Type: constants.EventNewOrder, Timestamp: ts}
	_, err := uc.Broadcast(context.Background(), n, models.Filter{})

	require.NoError(t, err)
	assert.Equal(t, "preset", n.ID)
	assert.Equal(t, ts, n.Timestamp)
}

func TestBroadcast_PersistsUnderFilterScope(t *testing.T) {
	repo := newFakeRepo()
	uc := NewNotifyUC(&fakeBroadcaster{}, repo)

	restaurantID := int64(5)
	_, err := uc.Broadcast(context.Background(), &models.Notification{Type: constants.EventNewOrder},
		models.Filter{RestaurantID: &restaurantID})
	require.NoError(t, err)

	assert.Len(t, repo.appended["restaurant:5"], 1)
}

func TestBroadcast_RepoFailureDoesNotBlockDelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.appendErr = errors.New("redis down")
	broadcaster := &fakeBroadcaster{delivered: 3}
	uc := NewNotifyUC(broadcaster, repo)

	userID := int64(42)
	delivered, err := uc.Broadcast(context.Background(), &models.Notification{Type: constants.EventOrderStatusUpdate},
		models.Filter{UserID: &userID})

	require.NoError(t, err)
	assert.Equal(t, 3, delivered)
	assert.Len(t, broadcaster.notifications, 1)
}

func TestHandleOrderCreated_TargetsRestaurantOwners(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	repo := newFakeRepo()
	uc := NewNotifyUC(broadcaster, repo)

	err := uc.HandleOrderCreated(context.Background(), &models.OrderCreatedEvent{
		OrderID:      101,
		RestaurantID: 5,
		CustomerID:   42,
		Total:        23.50,
		Status:       "pending",
	})
	require.NoError(t, err)

	require.Len(t, broadcaster.filters, 1)
	filter := broadcaster.filters[0]
	require.NotNil(t, filter.RestaurantID)
	assert.Equal(t, int64(5), *filter.RestaurantID)
	require.NotNil(t, filter.UserType)
	assert.Equal(t, models.UserTypeRestaurantOwner, *filter.UserType)
	assert.Nil(t, filter.UserID)

	n := broadcaster.notifications[0]
	assert.Equal(t, constants.EventNewOrder, n.Type)

	var data models.NewOrderData
	require.NoError(t, json.Unmarshal(n.Data, &data))
	assert.Equal(t, int64(101), data.OrderID)
	assert.Equal(t, 23.50, data.Total)

	// Persisted under the restaurant scope before dispatch.
	assert.Len(t, repo.appended["restaurant:5"], 1)
}

func TestHandleOrderStatus_TargetsCustomer(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	uc := NewNotifyUC(broadcaster, newFakeRepo())

	err := uc.HandleOrderStatus(context.Background(), &models.OrderStatusEvent{
		OrderID:    101,
		CustomerID: 42,
		Status:     "preparing",
	})
	require.NoError(t, err)

	require.Len(t, broadcaster.filters, 1)
	filter := broadcaster.filters[0]
	require.NotNil(t, filter.UserID)
	assert.Equal(t, int64(42), *filter.UserID)
	assert.Nil(t, filter.RestaurantID)

	assert.Equal(t, constants.EventOrderStatusUpdate, broadcaster.notifications[0].Type)
	assert.Contains(t, broadcaster.notifications[0].Message, "preparing")
}

func TestHandleDeliveryAssigned_NotifiesPartnerAndCustomer(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	uc := NewNotifyUC(broadcaster, newFakeRepo())

	err := uc.HandleDeliveryAssigned(context.Background(), &models.DeliveryAssignedEvent{
		OrderID:           101,
		CustomerID:        42,
		DeliveryPartnerID: 77,
	})
	require.NoError(t, err)

	require.Len(t, broadcaster.notifications, 2)
	assert.Equal(t, constants.EventDeliveryAssignment, broadcaster.notifications[0].Type)
	assert.Equal(t, int64(77), *broadcaster.filters[0].UserID)
	assert.Equal(t, constants.EventDeliveryAssigned, broadcaster.notifications[1].Type)
	assert.Equal(t, int64(42), *broadcaster.filters[1].UserID)
}

func TestHandleOrderDecision_ApprovedNotifiesCustomerAndRestaurant(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	uc := NewNotifyUC(broadcaster, newFakeRepo())

	err := uc.HandleOrderDecision(context.Background(), &models.OrderDecisionEvent{
		OrderID:      101,
		CustomerID:   42,
		RestaurantID: 5,
		Approved:     true,
	})
	require.NoError(t, err)

	require.Len(t, broadcaster.notifications, 2)
	assert.Equal(t, constants.EventOrderAdminDecision, broadcaster.notifications[0].Type)
	assert.Equal(t, constants.EventOrderApproval, broadcaster.notifications[1].Type)
}

func TestHandleOrderDecision_RejectedNotifiesCustomerOnly(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	uc := NewNotifyUC(broadcaster, newFakeRepo())

	err := uc.HandleOrderDecision(context.Background(), &models.OrderDecisionEvent{
		OrderID:    101,
		CustomerID: 42,
		Approved:   false,
		Reason:     "out of delivery area",
	})
	require.NoError(t, err)

	require.Len(t, broadcaster.notifications, 1)
	assert.Contains(t, broadcaster.notifications[0].Message, "rejected")
}

func TestNewNotificationID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newNotificationID(now)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
