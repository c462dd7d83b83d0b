package modreg

import (
	"fmt"
	"reflect"
	"strings"
)

type GraphNode struct {
	Module       string   `json:"module" yaml:"module"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// GraphEdge means "From depends on To". Dependency is the declared type,
// which may be an interface To implements.
type GraphEdge struct {
	From       string `json:"from" yaml:"from"`
	To         string `json:"to" yaml:"to"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Soft       bool   `json:"soft,omitempty" yaml:"soft,omitempty"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
	// Order is the validation order; dependencies come first unless they were
	// reached through a cycle.
	Order []string `json:"order" yaml:"order"`
}

// Graph returns a snapshot of the valid modules and the dependencies they
// declared. It waits for an in-flight registration to finish, so it must not
// be called from an initializer.
func (r *Registry) Graph() Graph {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := *r.order.Load()
	g := Graph{
		Nodes: make([]GraphNode, 0, len(order)),
		Order: make([]string, 0, len(order)),
	}

	names := make(map[*moduleWrapper]string, len(order))
	for _, w := range order {
		if !w.valid() {
			continue
		}
		name := typeName(w.runtimeType())
		names[w] = name
		caps := make([]string, 0, len(w.reserved))
		for _, t := range w.reserved {
			caps = append(caps, typeName(t))
		}
		g.Nodes = append(g.Nodes, GraphNode{Module: name, Capabilities: caps})
		g.Order = append(g.Order, name)
	}

	for _, w := range order {
		from, ok := names[w]
		if !ok || w.properties == nil {
			continue
		}
		for _, dep := range w.properties.dependencies {
			if to, ok := r.providerName(dep, names); ok {
				g.Edges = append(g.Edges, GraphEdge{From: from, To: to, Dependency: typeName(dep)})
			}
		}
		for _, dep := range w.properties.softDependencies {
			if to, ok := r.providerName(dep, names); ok {
				g.Edges = append(g.Edges, GraphEdge{From: from, To: to, Dependency: typeName(dep), Soft: true})
			}
		}
	}
	return g
}

// providerName returns the node of the first valid module registered under dep.
func (r *Registry) providerName(dep reflect.Type, names map[*moduleWrapper]string) (string, bool) {
	for _, w := range r.index.lookupAll(dep) {
		if name, ok := names[w]; ok {
			return name, true
		}
	}
	return "", false
}

// DOT exports Graphviz DOT text. Soft dependencies are dashed.
func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph modreg {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Module] = alias
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, escapeDOT(n.Module)))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		attrs := ""
		if e.Dependency != e.To {
			attrs = fmt.Sprintf("label=\"%s\"", escapeDOT(e.Dependency))
		}
		if e.Soft {
			if attrs != "" {
				attrs += ", "
			}
			attrs += "style=dashed"
		}
		if attrs != "" {
			b.WriteString(fmt.Sprintf("  %s -> %s [%s];\n", from, to, attrs))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s -> %s;\n", from, to))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text. Soft dependencies are dotted.
func (g Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	aliases := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.Module] = alias
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", alias, escapeMermaid(n.Module)))
	}
	for _, e := range g.Edges {
		from, okFrom := aliases[e.From]
		to, okTo := aliases[e.To]
		if !okFrom || !okTo {
			continue
		}
		arrow := "-->"
		if e.Soft {
			arrow = "-.->"
		}
		b.WriteString(fmt.Sprintf("    %s %s %s\n", from, arrow, to))
	}
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
