package modreg

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphExport(t *testing.T) {
	g := Graph{
		Nodes: []GraphNode{{Module: "*app.Service"}, {Module: "*app.Store"}, {Module: `*app.Quote"d`}},
		Edges: []GraphEdge{
			{From: "*app.Service", To: "*app.Store", Dependency: "app.Storage"},
			{From: "*app.Service", To: `*app.Quote"d`, Dependency: `*app.Quote"d`, Soft: true},
			{From: "*app.Service", To: "*app.Missing", Dependency: "*app.Missing"},
		},
	}

	dot := g.DOT()
	assert.True(t, strings.HasPrefix(dot, "digraph modreg {"))
	assert.Contains(t, dot, `n0 [label="*app.Service"];`)
	assert.Contains(t, dot, `n2 [label="*app.Quote\"d"];`)
	assert.Contains(t, dot, `n0 -> n1 [label="app.Storage"];`)
	assert.Contains(t, dot, "n0 -> n2 [style=dashed];")
	assert.Equal(t, 2, strings.Count(dot, "->"), "edges to unknown nodes are dropped")

	mermaid := g.Mermaid()
	assert.True(t, strings.HasPrefix(mermaid, "graph TD\n"))
	assert.Contains(t, mermaid, "n0 --> n1")
	assert.Contains(t, mermaid, "n0 -.-> n2")
}

func TestGraphInterfaceEdge(t *testing.T) {
	ctx := context.Background()
	reg := New()
	require.NoError(t, reg.RegisterAnonymous(ctx, &implementation{}))
	require.NoError(t, Register[*needsProvider](ctx, reg, DefaultPolicy()))

	g := reg.Graph()
	require.Len(t, g.Edges, 1)
	assert.Equal(t, GraphEdge{From: "*modreg.needsProvider", To: "*modreg.implementation", Dependency: "modreg.provider"}, g.Edges[0])
	assert.Contains(t, g.Nodes[0].Capabilities, "modreg.provider", "declared later, still listed")
}
