package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/model"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

func newTestStore(t *testing.T) *store.Badger {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBuild_AssemblesGraph(t *testing.T) {
	st := newTestStore(t)
	sbomID := uuid.New()

	doc := &store.Document{
		Sbom: store.Sbom{SbomID: sbomID, DocumentID: "doc-1"},
		Nodes: []store.NodeRow{
			{SbomID: sbomID, NodeID: "root", Name: "doc", Kind: store.NodeKindOther},
			{SbomID: sbomID, NodeID: "pkg-a", Name: "a", Kind: store.NodeKindPackage,
				Version: "1.0", Purls: []string{"pkg:rpm/a@1.0"}},
			{SbomID: sbomID, NodeID: "ext-1", Name: "external", Kind: store.NodeKindExternal,
				ExternalDocRef: "other-doc", ExternalNodeRef: "pkg-b"},
		},
		Relationships: []store.RelationshipRow{
			{SbomID: sbomID, SourceNodeID: "root", TargetNodeID: "pkg-a", Relationship: model.RelationshipDescribes},
			{SbomID: sbomID, SourceNodeID: "pkg-a", TargetNodeID: "ext-1", Relationship: model.RelationshipDependsOn},
		},
	}
	if err := st.InsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}

	pg, err := Build(context.Background(), st, sbomID)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if pg.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes, got %d", pg.NodeCount())
	}
	if pg.EdgeCount() != 2 {
		t.Errorf("Expected 2 edges, got %d", pg.EdgeCount())
	}

	pkg, _, ok := pg.NodeByID("pkg-a")
	if !ok {
		t.Fatal("Expected pkg-a to be in the graph")
	}
	if pkg.Kind != KindPackage || pkg.Package == nil {
		t.Fatalf("Expected pkg-a to be a package node")
	}
	if pkg.Package.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %s", pkg.Package.Version)
	}

	ext, _, ok := pg.NodeByID("ext-1")
	if !ok {
		t.Fatal("Expected ext-1 to be in the graph")
	}
	if ext.Kind != KindExternal || ext.External == nil {
		t.Fatalf("Expected ext-1 to be an external node")
	}
	if ext.External.ExternalDocumentReference != "other-doc" {
		t.Errorf("Expected external doc ref other-doc, got %s", ext.External.ExternalDocumentReference)
	}

	root, _, ok := pg.NodeByID("root")
	if !ok {
		t.Fatal("Expected root to be in the graph")
	}
	if root.Kind != KindOther {
		t.Errorf("Expected root to be an other node, got kind %d", root.Kind)
	}
}

func TestBuild_SkipsUnknownEndpoints(t *testing.T) {
	st := newTestStore(t)
	sbomID := uuid.New()

	doc := &store.Document{
		Sbom: store.Sbom{SbomID: sbomID, DocumentID: "doc-2"},
		Nodes: []store.NodeRow{
			{SbomID: sbomID, NodeID: "a", Name: "a", Kind: store.NodeKindPackage},
			{SbomID: sbomID, NodeID: "b", Name: "b", Kind: store.NodeKindPackage},
		},
		Relationships: []store.RelationshipRow{
			{SbomID: sbomID, SourceNodeID: "a", TargetNodeID: "b", Relationship: model.RelationshipDependsOn},
			{SbomID: sbomID, SourceNodeID: "a", TargetNodeID: "ghost", Relationship: model.RelationshipDependsOn},
			{SbomID: sbomID, SourceNodeID: "ghost", TargetNodeID: "b", Relationship: model.RelationshipDependsOn},
		},
	}
	if err := st.InsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}

	pg, err := Build(context.Background(), st, sbomID)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if pg.NodeCount() != 2 {
		t.Errorf("Expected 2 nodes, got %d", pg.NodeCount())
	}
	if pg.EdgeCount() != 1 {
		t.Errorf("Expected dangling relationships to be skipped, got %d edges", pg.EdgeCount())
	}
}

func TestBuild_EmptySbom(t *testing.T) {
	st := newTestStore(t)
	sbomID := uuid.New()

	doc := &store.Document{Sbom: store.Sbom{SbomID: sbomID, DocumentID: "doc-3"}}
	if err := st.InsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}

	pg, err := Build(context.Background(), st, sbomID)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if pg.NodeCount() != 0 || pg.EdgeCount() != 0 {
		t.Errorf("Expected empty graph, got %d nodes and %d edges", pg.NodeCount(), pg.EdgeCount())
	}
}
