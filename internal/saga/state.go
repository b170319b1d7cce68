package saga

// State represents the saga position in the fulfillment state machine
type State string

const (
	StateStarted        State = "STARTED"
	StateStockReserved  State = "STOCK_RESERVED"
	StatePaymentPending State = "PAYMENT_PENDING"
	StateCompleted      State = "COMPLETED"
	StateCompensating   State = "COMPENSATING"
	StateCompensated    State = "COMPENSATED"
	StateFailed         State = "FAILED"
)

// transitions defines the legal edges of the saga state machine.
// Any non-terminal state may enter COMPENSATING; the happy path is
// STARTED -> STOCK_RESERVED -> PAYMENT_PENDING -> COMPLETED.
var transitions = map[State][]State{
	StateStarted:        {StateStockReserved, StateCompensating},
	StateStockReserved:  {StatePaymentPending, StateCompensating},
	StatePaymentPending: {StateCompleted, StateCompensating},
	StateCompensating:   {StateCompensated, StateFailed},
	StateCompleted:      {}, // Terminal state
	StateCompensated:    {}, // Terminal state
	StateFailed:         {}, // Terminal state
}

// CanTransitionTo checks if the state machine allows moving to next
func (s State) CanTransitionTo(next State) bool {
	allowed, exists := transitions[s]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if a == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCompensated || s == StateFailed
}
