package inject

import (
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateGraph(t *testing.T) {
	dot, err := StateGraph()
	require.NoError(t, err)

	ast, err := gographviz.ParseString(dot)
	require.NoError(t, err)
	g := gographviz.NewGraph()
	require.NoError(t, gographviz.Analyse(ast, g))

	assert.True(t, g.Directed)
	assert.Len(t, g.Nodes.Nodes, len(stateNames))

	hasEdge := func(from, to State) bool {
		return len(g.Edges.SrcToDsts[from.String()][to.String()]) > 0
	}
	assert.True(t, hasEdge(Idle, Working))
	assert.True(t, hasEdge(Working, TaskSucceeded))
	// momentary states settle in idle
	assert.True(t, hasEdge(TaskSucceeded, Idle))
	assert.True(t, hasEdge(ScriptSucceeded, Idle))
	assert.True(t, hasEdge(Failed, Idle))
	assert.False(t, hasEdge(Idle, TaskSucceeded))

	edge := g.Edges.SrcToDsts[Failed.String()][Idle.String()][0]
	assert.Contains(t, edge.Attrs["label"], "rewind_queue")
	assert.Contains(t, edge.Attrs["label"], "failure_action")
}
