package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
)

func TestAvailableNextStatuses(t *testing.T) {
	tests := []struct {
		status   Status
		pickup   []Status
		delivery []Status
	}{
		{StatusPending, []Status{StatusPaid, StatusCancelled}, []Status{StatusPaid, StatusCancelled}},
		{StatusPaid, []Status{StatusProcessed, StatusCancelled}, []Status{StatusProcessed, StatusCancelled}},
		{StatusProcessed, []Status{StatusWaitingForPickup, StatusCancelled}, []Status{StatusOnDelivery, StatusCancelled}},
		{StatusWaitingForPickup, []Status{StatusPickedUp, StatusCancelled}, []Status{}},
		{StatusOnDelivery, []Status{}, []Status{StatusDone, StatusCancelled}},
		{StatusPickedUp, []Status{StatusDone}, []Status{}},
		{StatusDone, []Status{}, []Status{}},
		{StatusCancelled, []Status{}, []Status{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.pickup, AvailableNextStatuses(tt.status, FulfillmentPickup))
			assert.Equal(t, tt.delivery, AvailableNextStatuses(tt.status, FulfillmentDelivery))
		})
	}
}

func TestCanTransitionMatchesTable(t *testing.T) {
	for _, method := range []FulfillmentMethod{FulfillmentPickup, FulfillmentDelivery} {
		for _, from := range AllStatuses {
			allowed := map[Status]bool{}
			for _, s := range AvailableNextStatuses(from, method) {
				allowed[s] = true
			}
			for _, to := range AllStatuses {
				assert.Equal(t, allowed[to], CanTransition(from, to, method), "%s %s -> %s", method, from, to)
			}
		}
	}
}

func TestAvailableNextStatusesReturnsCopy(t *testing.T) {
	next := AvailableNextStatuses(StatusPending, FulfillmentPickup)
	next[0] = StatusDone
	assert.Equal(t, StatusPaid, AvailableNextStatuses(StatusPending, FulfillmentPickup)[0])
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" waiting_for_pickup ")
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingForPickup, s)

	_, err = ParseStatus("SHIPPED")
	assert.True(t, apperror.IsValidation(err))
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{Current: StatusPaid, Attempted: StatusOnDelivery}
	assert.Equal(t, "invalid status transition from PAID to ON_DELIVERY", err.Error())
}
