package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/graph"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
	"github.com/ritzau/sbom-analyzer/pkg/model"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

// nodeKey identifies a node across all loaded graphs
type nodeKey struct {
	sbomID uuid.UUID
	nodeID string
}

// collector expands one direction (ancestors or descendants) from a
// starting node, bounded by depth and a relationship filter. It tracks
// every visited (sbom id, node id) pair so that cycles inside a graph
// and cyclic external-reference chains between graphs terminate, even
// though admitted graphs are already known to be acyclic on their own.
//
// When expansion reaches an external node it consults the resolver;
// on success it continues inside the resolved SBOM's graph, loading it
// through the cache and subjecting it to the same cycle-guard
// admission as the graphs loaded up front. The cross-document hop
// counts one depth level like any other edge. On a miss, or when the
// target graph is cyclic, the external node stays a leaf.
//
// The collector only reads shared state, so abandoning an expansion
// early never corrupts the cache.
type collector struct {
	cache         *GraphCache
	src           store.Source
	admitted      *admission
	direction     graph.Direction
	relationships []model.Relationship
	visited       map[nodeKey]struct{}
}

func newCollector(cache *GraphCache, src store.Source, adm *admission, direction graph.Direction, relationships []model.Relationship, start *graph.Node) *collector {
	return &collector{
		cache:         cache,
		src:           src,
		admitted:      adm,
		direction:     direction,
		relationships: relationships,
		visited: map[nodeKey]struct{}{
			{sbomID: start.SbomID, nodeID: start.NodeID}: {},
		},
	}
}

// collect returns the nodes reachable from id within depth edges
func (c *collector) collect(ctx context.Context, pg *graph.PackageGraph, id int64, depth int) []model.Node {
	if depth <= 0 {
		return nil
	}

	var results []model.Node
	for _, nb := range pg.Neighbors(id, c.direction) {
		if !c.allowed(nb.Relationship) {
			continue
		}

		key := nodeKey{sbomID: nb.Node.SbomID, nodeID: nb.Node.NodeID}
		if _, seen := c.visited[key]; seen {
			continue
		}
		c.visited[key] = struct{}{}

		rel := nb.Relationship
		record := model.Node{
			BaseNode:     nb.Node.Base(),
			Relationship: &rel,
		}
		c.attach(&record, c.expand(ctx, pg, nb.ID, nb.Node, depth-1))

		results = append(results, record)
	}
	return results
}

// expand produces the sub-results of one visited node. External nodes
// cross into the resolved SBOM's graph; everything else keeps walking
// the current graph.
func (c *collector) expand(ctx context.Context, pg *graph.PackageGraph, id int64, node *graph.Node, depth int) []model.Node {
	if node.Kind != graph.KindExternal {
		return c.collect(ctx, pg, id, depth)
	}

	if depth <= 0 {
		return nil
	}

	resolved := resolveExternalSbom(ctx, c.src, node.NodeID)
	if resolved == nil {
		// Unresolvable reference: the external node itself stays in the
		// result as a leaf.
		return nil
	}

	target, err := c.cache.GetOrBuild(ctx, resolved.SbomID, func(ctx context.Context) (*graph.PackageGraph, error) {
		return graph.Build(ctx, c.src, resolved.SbomID)
	})
	if err != nil {
		logging.WarnContext(ctx, "failed to load externally referenced sbom graph",
			"sbom_id", resolved.SbomID.String(),
			"error", err.Error(),
		)
		return nil
	}

	// The cycle guard covers graphs entered through external references
	// too. A cyclic target counts as a resolution miss and the external
	// node stays a leaf.
	if !c.admitted.admit(ctx, resolved.SbomID, target) {
		return nil
	}

	targetNode, targetID, ok := target.NodeByID(resolved.NodeID)
	if !ok {
		return nil
	}

	key := nodeKey{sbomID: targetNode.SbomID, nodeID: targetNode.NodeID}
	if _, seen := c.visited[key]; seen {
		return nil
	}
	c.visited[key] = struct{}{}

	record := model.Node{BaseNode: targetNode.Base()}
	c.attach(&record, c.collect(ctx, target, targetID, depth-1))

	return []model.Node{record}
}

// attach stores children under the field matching the direction
func (c *collector) attach(record *model.Node, children []model.Node) {
	if c.direction == graph.DirectionIncoming {
		record.Ancestors = children
	} else {
		record.Descendants = children
	}
}

// allowed applies the relationship filter; an empty filter allows all
func (c *collector) allowed(rel model.Relationship) bool {
	if len(c.relationships) == 0 {
		return true
	}
	for _, want := range c.relationships {
		if rel == want {
			return true
		}
	}
	return false
}
