package analysis

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/sbom-analyzer/pkg/config"
	"github.com/ritzau/sbom-analyzer/pkg/cycles"
	"github.com/ritzau/sbom-analyzer/pkg/graph"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
	"github.com/ritzau/sbom-analyzer/pkg/model"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

// AnalysisService answers dependency questions across SBOM graphs.
//
// A new instance has a new, empty cache: copies of an instance share
// its cache, while constructing another instance deliberately creates
// an isolated one. Reuse one instance wherever the cache should be
// shared; there is intentionally no package-level default.
type AnalysisService struct {
	cache          *GraphCache
	src            store.Source
	maxConcurrency int
	maxDepth       int
}

// sbomGraph pairs a loaded graph with its SBOM id
type sbomGraph struct {
	sbomID uuid.UUID
	graph  *graph.PackageGraph
}

// New creates an analysis service with its own graph cache and
// registers the cache gauges with the global meter provider.
func New(cfg *config.Config, src store.Source) *AnalysisService {
	s := &AnalysisService{
		cache:          NewGraphCache(cfg.MaxCacheSize),
		src:            src,
		maxConcurrency: cfg.MaxConcurrency,
		maxDepth:       cfg.MaxDepth,
	}
	if s.maxConcurrency <= 0 {
		s.maxConcurrency = 1
	}

	s.registerGauges()

	return s
}

// registerGauges exposes cache size and entry count as observable
// gauges, sampled whenever metrics are scraped.
func (s *AnalysisService) registerGauges() {
	meter := otel.Meter("github.com/ritzau/sbom-analyzer/pkg/analysis")

	cacheSize, err := meter.Int64ObservableGauge(
		"analysis.cache_size",
		metric.WithDescription("Approximate byte size of all cached SBOM graphs"),
		metric.WithUnit("By"),
	)
	if err != nil {
		logging.Warn("failed to create cache size gauge", "error", err.Error())
		return
	}

	cacheItems, err := meter.Int64ObservableGauge(
		"analysis.cache_items",
		metric.WithDescription("Number of SBOM graphs resident in the cache"),
		metric.WithUnit("{graph}"),
	)
	if err != nil {
		logging.Warn("failed to create cache items gauge", "error", err.Error())
		return
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(cacheSize, int64(s.cache.SizeUsed()))
		o.ObserveInt64(cacheItems, int64(s.cache.Len()))
		return nil
	}, cacheSize, cacheItems)
	if err != nil {
		logging.Warn("failed to register cache gauges", "error", err.Error())
	}
}

// CacheSizeUsed returns the approximate byte size of resident graphs
func (s *AnalysisService) CacheSizeUsed() uint64 {
	return s.cache.SizeUsed()
}

// CacheLen returns the number of resident graphs
func (s *AnalysisService) CacheLen() uint64 {
	return s.cache.Len()
}

// ClearAllGraphs empties the cache. This is an administrative action;
// nothing in the request path calls it.
func (s *AnalysisService) ClearAllGraphs() {
	s.cache.Clear()
}

// Status reports how many SBOMs the store knows versus how many graphs
// are resident in the cache.
func (s *AnalysisService) Status(ctx context.Context) (*model.AnalysisStatus, error) {
	sboms, err := s.src.FetchSboms(ctx)
	if err != nil {
		return nil, err
	}
	return &model.AnalysisStatus{
		SbomCount:  uint32(len(sboms)),
		GraphCount: uint32(s.cache.Len()),
	}, nil
}

// Retrieve locates components across all known SBOMs and expands their
// dependency information.
func (s *AnalysisService) Retrieve(ctx context.Context, query GraphQuery, options model.QueryOptions, paginated model.Paginated) (*model.PaginatedResults[model.Node], error) {
	sboms, err := s.src.FetchSboms(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(sboms))
	for _, sbom := range sboms {
		ids = append(ids, sbom.SbomID)
	}

	return s.retrieve(ctx, ids, query, options, paginated)
}

// RetrieveSingle locates components within one SBOM and expands their
// dependency information. Expansion may still cross into other SBOMs
// through external references.
func (s *AnalysisService) RetrieveSingle(ctx context.Context, sbomID uuid.UUID, query GraphQuery, options model.QueryOptions, paginated model.Paginated) (*model.PaginatedResults[model.Node], error) {
	return s.retrieve(ctx, []uuid.UUID{sbomID}, query, options, paginated)
}

func (s *AnalysisService) retrieve(ctx context.Context, sbomIDs []uuid.UUID, query GraphQuery, options model.QueryOptions, paginated model.Paginated) (*model.PaginatedResults[model.Node], error) {
	graphs, err := s.loadGraphs(ctx, sbomIDs)
	if err != nil {
		return nil, err
	}

	nodes, err := s.runQuery(ctx, graphs, query, s.clampOptions(options))
	if err != nil {
		return nil, err
	}

	results := model.Paginate(paginated, nodes)
	return &results, nil
}

// loadGraphs loads the graphs in scope through the cache
func (s *AnalysisService) loadGraphs(ctx context.Context, sbomIDs []uuid.UUID) ([]sbomGraph, error) {
	graphs := make([]sbomGraph, 0, len(sbomIDs))
	for _, sbomID := range sbomIDs {
		pg, err := s.cache.GetOrBuild(ctx, sbomID, func(ctx context.Context) (*graph.PackageGraph, error) {
			return graph.Build(ctx, s.src, sbomID)
		})
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, sbomGraph{sbomID: sbomID, graph: pg})
	}
	return graphs, nil
}

// runQuery admits acyclic graphs, finds matching starting nodes and
// expands them concurrently. Result order across starting points is
// not guaranteed.
func (s *AnalysisService) runQuery(ctx context.Context, graphs []sbomGraph, query GraphQuery, options model.QueryOptions) ([]model.Node, error) {
	type match struct {
		graph *graph.PackageGraph
		id    int64
	}

	adm := newAdmission()

	var matchList []match
	for _, sg := range graphs {
		if !adm.admit(ctx, sg.sbomID, sg.graph) {
			continue
		}
		for _, id := range sg.graph.NodeIndices() {
			if matches(sg.graph, id, query) {
				matchList = append(matchList, match{graph: sg.graph, id: id})
			}
		}
	}

	var (
		mu    sync.Mutex
		nodes []model.Node
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for _, m := range matchList {
		m := m
		g.Go(func() error {
			node := s.expandMatch(ctx, adm, m.graph, m.id, options)

			mu.Lock()
			nodes = append(nodes, node)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return nodes, nil
}

// expandMatch builds one result record with its ancestor and
// descendant sub-results.
func (s *AnalysisService) expandMatch(ctx context.Context, adm *admission, pg *graph.PackageGraph, id int64, options model.QueryOptions) model.Node {
	start := pg.NodeAt(id)

	logging.DebugContext(ctx, "discovered node",
		"sbom_id", start.SbomID.String(),
		"node_id", start.NodeID,
	)

	node := model.Node{BaseNode: start.Base()}

	if options.Ancestors > 0 {
		up := newCollector(s.cache, s.src, adm, graph.DirectionIncoming, options.Relationships, start)
		node.Ancestors = up.collect(ctx, pg, id, options.Ancestors)
	}
	if options.Descendants > 0 {
		down := newCollector(s.cache, s.src, adm, graph.DirectionOutgoing, options.Relationships, start)
		node.Descendants = down.collect(ctx, pg, id, options.Descendants)
	}

	return node
}

// admission memoizes cycle-guard verdicts for one request, so every
// graph is checked at most once no matter how many expansions reach
// it. The same guard applies to graphs loaded up front and to graphs
// entered later through external references.
type admission struct {
	mu       sync.Mutex
	verdicts map[uuid.UUID]bool
}

func newAdmission() *admission {
	return &admission{verdicts: make(map[uuid.UUID]bool)}
}

// admit excludes graphs with circular references from traversal.
// Expansion depth is effectively unbounded, so rather than breaking an
// arbitrary edge the whole graph sits out this request.
func (a *admission) admit(ctx context.Context, sbomID uuid.UUID, pg *graph.PackageGraph) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if verdict, ok := a.verdicts[sbomID]; ok {
		return verdict
	}
	verdict := checkAcyclic(ctx, sbomID, pg)
	a.verdicts[sbomID] = verdict
	return verdict
}

func checkAcyclic(ctx context.Context, sbomID uuid.UUID, pg *graph.PackageGraph) bool {
	if loops := pg.SelfLoops(); len(loops) > 0 {
		nodeID := "?"
		if n := pg.NodeAt(loops[0]); n != nil {
			nodeID = n.NodeID
		}
		logging.WarnContext(ctx, "analysis graph has circular references, excluding sbom",
			"sbom_id", sbomID.String(),
			"from", nodeID,
			"to", nodeID,
		)
		return false
	}

	from, to, found := cycles.FindBackEdge(pg.Directed())
	if !found {
		return true
	}

	fromID, toID := "?", "?"
	if n := pg.NodeAt(from); n != nil {
		fromID = n.NodeID
	}
	if n := pg.NodeAt(to); n != nil {
		toID = n.NodeID
	}
	logging.WarnContext(ctx, "analysis graph has circular references, excluding sbom",
		"sbom_id", sbomID.String(),
		"from", fromID,
		"to", toID,
	)
	return false
}

// clampOptions caps requested depths at the configured maximum
func (s *AnalysisService) clampOptions(options model.QueryOptions) model.QueryOptions {
	if s.maxDepth > 0 {
		if options.Ancestors > s.maxDepth {
			options.Ancestors = s.maxDepth
		}
		if options.Descendants > s.maxDepth {
			options.Descendants = s.maxDepth
		}
	}
	return options
}
