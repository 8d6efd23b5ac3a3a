package cycles

import (
	"gonum.org/v1/gonum/graph"
)

type color uint8

const (
	white color = iota // not visited
	grey               // on the current DFS path
	black              // fully explored
)

// backEdgeFinder runs a depth-first search looking for the first edge
// pointing back into the current DFS path.
type backEdgeFinder struct {
	graph  graph.Directed
	colors map[int64]color
	from   int64
	to     int64
	found  bool
}

// FindBackEdge searches the directed graph for a back-edge, starting a
// depth-first search from every node to cover disconnected components.
// It short-circuits on the first back-edge and returns its endpoints.
// A graph without back-edges is acyclic.
func FindBackEdge(g graph.Directed) (from, to int64, found bool) {
	f := &backEdgeFinder{
		graph:  g,
		colors: make(map[int64]color),
	}

	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if f.colors[id] == white {
			if f.visit(id) {
				break
			}
		}
	}

	return f.from, f.to, f.found
}

// visit explores a node, reporting true once a back-edge is found
func (f *backEdgeFinder) visit(id int64) bool {
	f.colors[id] = grey

	successors := f.graph.From(id)
	for successors.Next() {
		successorID := successors.Node().ID()

		switch f.colors[successorID] {
		case grey:
			// Successor is on the current path: id -> successor closes a cycle
			f.from = id
			f.to = successorID
			f.found = true
			return true
		case white:
			if f.visit(successorID) {
				return true
			}
		}
	}

	f.colors[id] = black
	return false
}
