package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

// Build loads all rows of one SBOM and assembles its graph. Nodes are
// added first, one per distinct node id, typed by the row's structural
// kind; edges follow, one per relationship row. Relationship rows
// referencing an unknown endpoint are skipped rather than rejected:
// partial or degenerate ingestion must not block analysis of the rest
// of the document.
func Build(ctx context.Context, src store.Source, sbomID uuid.UUID) (*PackageGraph, error) {
	rows, err := src.FetchGraphRows(ctx, sbomID)
	if err != nil {
		return nil, fmt.Errorf("build graph for sbom %s: %w", sbomID, err)
	}

	pg := NewPackageGraph()

	for _, row := range rows.Nodes {
		pg.AddNode(nodeFromRow(row))
	}

	for _, rel := range rows.Relationships {
		if !pg.AddEdge(rel.SourceNodeID, rel.TargetNodeID, rel.Relationship) {
			logging.DebugContext(ctx, "skipping relationship with unknown endpoint",
				"sbom_id", sbomID.String(),
				"source", rel.SourceNodeID,
				"target", rel.TargetNodeID,
				"relationship", string(rel.Relationship),
			)
		}
	}

	logging.DebugContext(ctx, "built sbom graph",
		"sbom_id", sbomID.String(),
		"nodes", pg.NodeCount(),
		"edges", pg.EdgeCount(),
	)

	return pg, nil
}

func nodeFromRow(row store.NodeRow) *Node {
	node := &Node{
		SbomID: row.SbomID,
		NodeID: row.NodeID,
		Name:   row.Name,
	}

	switch row.Kind {
	case store.NodeKindPackage:
		node.Kind = KindPackage
		node.Package = &PackageData{
			Version: row.Version,
			Purls:   row.Purls,
			Cpes:    row.Cpes,
		}
	case store.NodeKindExternal:
		node.Kind = KindExternal
		node.External = &ExternalData{
			ExternalDocumentReference: row.ExternalDocRef,
			ExternalNodeID:            row.ExternalNodeRef,
		}
	default:
		node.Kind = KindOther
	}

	return node
}
