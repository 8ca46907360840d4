package invoice

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateTable(t *testing.T) {
	all := []State{StatePending, StateHeld, StateSucceeded, StateFailed}

	for _, hold := range []bool{true, false} {
		for _, from := range all {
			for _, to := range all {
				if from.IsTerminal() {
					require.False(t, CanTransition(hold, from, to), "%s -> %s", from, to)
				}
				if to == StatePending {
					require.False(t, CanTransition(hold, from, to), "%s -> %s", from, to)
				}
			}
		}
	}

	require.True(t, CanTransition(true, StatePending, StateHeld))
	require.True(t, CanTransition(true, StateHeld, StateSucceeded))
	require.True(t, CanTransition(true, StateHeld, StateFailed))
	require.False(t, CanTransition(true, StatePending, StateSucceeded))
	require.True(t, CanTransition(false, StatePending, StateSucceeded))
	require.False(t, CanTransition(false, StatePending, StateHeld))
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(StateHeld)
	require.NoError(t, err)
	require.Equal(t, `"Held"`, string(b))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`"Failed"`), &s))
	require.Equal(t, StateFailed, s)

	require.Error(t, json.Unmarshal([]byte(`"Paid"`), &s))
	require.Equal(t, "State(9)", State(9).String())
}

func TestInvoiceCopy(t *testing.T) {
	inv, _ := newTestInvoice(t, true)
	inv.HTLCs = []HeldHTLC{{Ref: HTLCRef{1, 1}, Amount: 5, Deadline: time.Now()}}

	c, err := inv.Copy()
	require.NoError(t, err)
	require.Equal(t, inv.PaymentHash, c.PaymentHash)
	c.HTLCs[0].Amount = 6
	require.NotEqual(t, inv.HTLCs[0].Amount, c.HTLCs[0].Amount)
}

func TestEarliestDeadline(t *testing.T) {
	now := time.Now()
	inv := &Invoice{HTLCs: []HeldHTLC{
		{Deadline: now.Add(time.Hour)},
		{Deadline: now.Add(time.Minute)},
	}}
	require.True(t, inv.EarliestDeadline().Equal(now.Add(time.Minute)))
	require.True(t, (&Invoice{}).EarliestDeadline().IsZero())
}

func TestTransitionGraph(t *testing.T) {
	dot, err := TransitionGraph()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(strings.TrimSpace(dot), "digraph"))
	require.Contains(t, dot, "Pending->Held")
	require.Contains(t, dot, "Held->Succeeded")
	require.Contains(t, dot, "Pending->Succeeded")
}
