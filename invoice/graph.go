package invoice

import (
	"sort"

	"github.com/awalterschulze/gographviz"
)

// TransitionGraph renders the state table as a DOT digraph.  Edges only a
// hold invoice can take are drawn in blue.
func TransitionGraph() (string, error) {
	graph := gographviz.NewGraph()
	if err := graph.SetName("invoice"); err != nil {
		return "", err
	}
	if err := graph.SetDir(true); err != nil {
		return "", err
	}

	states := []State{StatePending, StateHeld, StateSucceeded, StateFailed}
	for _, s := range states {
		attrs := map[string]string{}
		if s.IsTerminal() {
			attrs["shape"] = "doublecircle"
		}
		if err := graph.AddNode("invoice", s.String(), attrs); err != nil {
			return "", err
		}
	}

	for _, from := range states {
		seen := map[State]bool{}
		for _, to := range holdTransitions[from] {
			seen[to] = true
		}
		for _, to := range standardTransitions[from] {
			seen[to] = true
		}

		tos := make([]State, 0, len(seen))
		for to := range seen {
			tos = append(tos, to)
		}
		sort.Slice(tos, func(i, j int) bool { return tos[i] < tos[j] })

		for _, to := range tos {
			attrs := map[string]string{}
			if !CanTransition(false, from, to) {
				attrs["color"] = "blue"
				attrs["label"] = "hold"
			}
			if err := graph.AddEdge(from.String(), to.String(), true, attrs); err != nil {
				return "", err
			}
		}
	}

	return graph.String(), nil
}
