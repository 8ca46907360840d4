package invoice

import (
	"fmt"

	"github.com/lightningnetwork/lnd/lntypes"

	"github.com/mit-dci/hodl/lncore"
)

// State is where an invoice is in its life.
type State uint8

const (
	// StatePending is waiting for payment.
	StatePending State = iota

	// StateHeld has the full payment locked in, neither claimed nor failed.
	StateHeld

	// StateSucceeded has been claimed with the preimage.  Final.
	StateSucceeded

	// StateFailed was cancelled or expired, HTLCs failed back.  Final.
	StateFailed
)

var stateNames = map[State]string{
	StatePending:   "Pending",
	StateHeld:      "Held",
	StateSucceeded: "Succeeded",
	StateFailed:    "Failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// IsTerminal is true for states nothing can leave.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown invoice state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	p, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown invoice state %q", name)
}

// Allowed moves.  Standard invoices never hold; hold invoices only succeed
// from Held.
var (
	standardTransitions = map[State][]State{
		StatePending: {StateSucceeded, StateFailed},
	}
	holdTransitions = map[State][]State{
		StatePending: {StateHeld, StateFailed},
		StateHeld:    {StateSucceeded, StateFailed},
	}
)

// Transitions returns the table for one kind of invoice.
func Transitions(hold bool) map[State][]State {
	if hold {
		return holdTransitions
	}
	return standardTransitions
}

// CanTransition checks one edge of the table.
func CanTransition(hold bool, from, to State) bool {
	for _, s := range Transitions(hold)[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is what a refused state change looks like.  It carries
// the state the invoice was actually in so the caller can tell a lost race
// from a plain mistake.
type TransitionError struct {
	Hash    lntypes.Hash
	Current State
	Wanted  State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invoice %s is %s, can't move to %s", e.Hash, e.Current, e.Wanted)
}

func (e *TransitionError) Unwrap() error {
	return lncore.ErrInvalidInvoiceState
}
