package graph

import (
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/ritzau/sbom-analyzer/pkg/model"
)

// Direction selects which edges a traversal follows
type Direction int

const (
	// DirectionIncoming follows edges pointing at a node (ancestors).
	DirectionIncoming Direction = iota
	// DirectionOutgoing follows edges leaving a node (descendants).
	DirectionOutgoing
)

// Neighbor is one node adjacent to another, together with the
// relationship labeling the connecting edge. Parallel edges yield one
// Neighbor per edge.
type Neighbor struct {
	ID           int64
	Node         *Node
	Relationship model.Relationship
}

// PackageGraph is the directed multigraph of exactly one SBOM. It is
// immutable once built: node indices stay stable for the graph's
// lifetime and readers share it by pointer, so cache eviction never
// invalidates an in-flight traversal. The graph may contain cycles;
// input is untrusted and traversal has to defend against them.
type PackageGraph struct {
	g     *multi.DirectedGraph
	ids   map[string]int64 // node_id -> graph id
	nodes map[int64]*Node  // graph id -> node
	order []int64          // graph ids in insertion order
	edges int
	// selfLoops holds nodes with an edge to themselves. The underlying
	// multigraph cannot represent those, so they are tracked here and
	// count as cycles.
	selfLoops []int64
}

// relationshipLine labels a gonum line with a relationship kind
type relationshipLine struct {
	gonum.Line
	rel model.Relationship
}

// NewPackageGraph creates an empty SBOM graph
func NewPackageGraph() *PackageGraph {
	return &PackageGraph{
		g:     multi.NewDirectedGraph(),
		ids:   make(map[string]int64),
		nodes: make(map[int64]*Node),
	}
}

// AddNode inserts a node, returning its stable graph id. Adding the
// same node id twice returns the existing id unchanged.
func (pg *PackageGraph) AddNode(node *Node) int64 {
	if id, exists := pg.ids[node.NodeID]; exists {
		return id
	}

	n := pg.g.NewNode()
	pg.g.AddNode(n)

	id := n.ID()
	pg.ids[node.NodeID] = id
	pg.nodes[id] = node
	pg.order = append(pg.order, id)
	return id
}

// AddEdge inserts a labeled edge between two known node ids. It
// reports false when either endpoint is unknown; nothing is added in
// that case.
func (pg *PackageGraph) AddEdge(sourceNodeID, targetNodeID string, rel model.Relationship) bool {
	sourceID, ok := pg.ids[sourceNodeID]
	if !ok {
		return false
	}
	targetID, ok := pg.ids[targetNodeID]
	if !ok {
		return false
	}

	if sourceID == targetID {
		pg.selfLoops = append(pg.selfLoops, sourceID)
		pg.edges++
		return true
	}

	line := pg.g.NewLine(pg.g.Node(sourceID), pg.g.Node(targetID))
	pg.g.SetLine(relationshipLine{Line: line, rel: rel})
	pg.edges++
	return true
}

// NodeByID returns a node and its graph id by node id
func (pg *PackageGraph) NodeByID(nodeID string) (*Node, int64, bool) {
	id, exists := pg.ids[nodeID]
	if !exists {
		return nil, 0, false
	}
	return pg.nodes[id], id, true
}

// NodeAt returns the node stored at a graph id
func (pg *PackageGraph) NodeAt(id int64) *Node {
	return pg.nodes[id]
}

// NodeIndices returns all graph ids in insertion order
func (pg *PackageGraph) NodeIndices() []int64 {
	return pg.order
}

// Neighbors returns the nodes adjacent to id in the given direction,
// one entry per connecting edge.
func (pg *PackageGraph) Neighbors(id int64, dir Direction) []Neighbor {
	var it gonum.Nodes
	switch dir {
	case DirectionIncoming:
		it = pg.g.To(id)
	default:
		it = pg.g.From(id)
	}

	var neighbors []Neighbor
	for it.Next() {
		other := it.Node().ID()

		var lines gonum.Lines
		if dir == DirectionIncoming {
			lines = pg.g.Lines(other, id)
		} else {
			lines = pg.g.Lines(id, other)
		}
		for lines.Next() {
			rel := model.RelationshipUndefined
			if rl, ok := lines.Line().(relationshipLine); ok {
				rel = rl.rel
			}
			neighbors = append(neighbors, Neighbor{
				ID:           other,
				Node:         pg.nodes[other],
				Relationship: rel,
			})
		}
	}
	return neighbors
}

// Directed exposes the underlying graph for generic algorithms. Self
// loops are not represented here; check SelfLoops separately.
func (pg *PackageGraph) Directed() gonum.Directed {
	return pg.g
}

// SelfLoops returns the graph ids of nodes with an edge to themselves
func (pg *PackageGraph) SelfLoops() []int64 {
	return pg.selfLoops
}

// NodeCount returns the number of nodes
func (pg *PackageGraph) NodeCount() int {
	return len(pg.nodes)
}

// EdgeCount returns the number of edges, counting parallel edges
func (pg *PackageGraph) EdgeCount() int {
	return pg.edges
}

// EstimatedSize approximates the graph's memory footprint in bytes.
// The estimate drives cache accounting, not allocation, so node and
// edge counts weighted by rough per-entry costs are good enough.
func (pg *PackageGraph) EstimatedSize() uint64 {
	var size uint64
	for _, node := range pg.nodes {
		size += 128 // struct, map entries, adjacency bookkeeping
		size += uint64(len(node.NodeID) + len(node.Name))
		if node.Package != nil {
			size += uint64(len(node.Package.Version))
			for _, p := range node.Package.Purls {
				size += uint64(len(p)) + 16
			}
			for _, c := range node.Package.Cpes {
				size += uint64(len(c)) + 16
			}
		}
		if node.External != nil {
			size += uint64(len(node.External.ExternalDocumentReference) +
				len(node.External.ExternalNodeID))
		}
	}
	size += uint64(pg.edges) * 64
	return size
}
