package inject

import (
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// request is a state change the processor asks for in response to an event.
type request struct {
	from, to State
	event    string
}

var requests = []request{
	{NotInitialized, Idle, "init"},
	{Idle, Working, "run_next_task"},
	{Idle, ScriptSucceeded, "queue_exhausted"},
	{Idle, Failed, "priming_failure"},
	{Working, TaskSucceeded, "provider_exhausted"},
	{Working, Failed, "retransmit_ceiling"},
	{Working, Idle, "stop"},
	{Working, NotInitialized, "deinit"},
	{Idle, NotInitialized, "deinit"},
}

// StateGraph renders the processor's transitions as a Graphviz digraph.
// Requested states that settle elsewhere get a second edge labelled with
// the effects applied on the way.
func StateGraph() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("inject"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	for s := NotInitialized; s <= Failed; s++ {
		attrs := map[string]string{"shape": "box"}
		if s == TaskSucceeded || s == ScriptSucceeded || s == Failed {
			attrs["style"] = "dashed"
		}
		if err := g.AddNode("inject", s.String(), attrs); err != nil {
			return "", err
		}
	}

	settled := make(map[State]bool)
	for _, r := range requests {
		if err := g.AddEdge(r.from.String(), r.to.String(), true, label(r.event)); err != nil {
			return "", err
		}
		next, effects := Transition(r.from, r.to, true)
		if next == r.to || settled[r.to] {
			continue
		}
		settled[r.to] = true
		names := make([]string, len(effects))
		for i, e := range effects {
			names[i] = e.String()
		}
		if err := g.AddEdge(r.to.String(), next.String(), true, label(strings.Join(names, ", "))); err != nil {
			return "", err
		}
	}
	return g.String(), nil
}

func label(s string) map[string]string {
	return map[string]string{"label": strconv.Quote(s)}
}
