package webhook

// State is the position of one callback delivery in the webhook pipeline.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateVerifying         State = "VERIFYING"
	StateVerified          State = "VERIFIED"
	StateRejected          State = "REJECTED"
	StateFulfilling        State = "FULFILLING"
	StateFulfilled         State = "FULFILLED"
	StateFulfillmentFailed State = "FULFILLMENT_FAILED"
)

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateFulfilled, StateFulfillmentFailed:
		return true
	}
	return false
}
