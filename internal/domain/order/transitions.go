// internal/domain/order/transitions.go
package order

import (
	"fmt"
	"strings"

	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
)

// Successors per fulfillment method. Cancelling after PICKED_UP or DONE is
// not in the table and therefore rejected.
var validNext = map[FulfillmentMethod]map[Status][]Status{
	FulfillmentPickup: {
		StatusPending:          {StatusPaid, StatusCancelled},
		StatusPaid:             {StatusProcessed, StatusCancelled},
		StatusProcessed:        {StatusWaitingForPickup, StatusCancelled},
		StatusWaitingForPickup: {StatusPickedUp, StatusCancelled},
		StatusPickedUp:         {StatusDone},
	},
	FulfillmentDelivery: {
		StatusPending:    {StatusPaid, StatusCancelled},
		StatusPaid:       {StatusProcessed, StatusCancelled},
		StatusProcessed:  {StatusOnDelivery, StatusCancelled},
		StatusOnDelivery: {StatusDone, StatusCancelled},
	},
}

// AvailableNextStatuses returns the statuses reachable from status for the
// given method, in a stable order. The result is a fresh slice.
func AvailableNextStatuses(status Status, method FulfillmentMethod) []Status {
	next := validNext[method][status]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is allowed for method.
func CanTransition(from, to Status, method FulfillmentMethod) bool {
	for _, s := range validNext[method][from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a status string from user input.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range AllStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", apperror.Invalid("status", fmt.Sprintf("unknown status %q", raw))
}

// InvalidTransitionError is returned when a requested status is not
// reachable from the current one.
type InvalidTransitionError struct {
	Current   Status   `json:"current_status"`
	Attempted Status   `json:"attempted_status"`
	Available []Status `json:"available_statuses"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.Current, e.Attempted)
}
