package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/ritzau/sbom-analyzer/pkg/analysis"
	"github.com/ritzau/sbom-analyzer/pkg/config"
	"github.com/ritzau/sbom-analyzer/pkg/model"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

func newTestServer(t *testing.T) (*Server, uuid.UUID) {
	t.Helper()

	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sbomID := uuid.New()
	doc := &store.Document{
		Sbom: store.Sbom{SbomID: sbomID, DocumentID: "test-doc"},
		Nodes: []store.NodeRow{
			{SbomID: sbomID, NodeID: "a", Name: "app", Kind: store.NodeKindPackage,
				Version: "1.0", Purls: []string{"pkg:rpm/app@1.0"}},
			{SbomID: sbomID, NodeID: "b", Name: "lib", Kind: store.NodeKindPackage, Version: "2.0"},
		},
		Relationships: []store.RelationshipRow{
			{SbomID: sbomID, SourceNodeID: "a", TargetNodeID: "b", Relationship: model.RelationshipDependsOn},
		},
	}
	if err := st.InsertDocument(context.Background(), doc); err != nil {
		t.Fatalf("InsertDocument failed: %v", err)
	}

	cfg := &config.Config{MaxCacheSize: 1 << 20, MaxConcurrency: 2, MaxDepth: 16}
	return NewServer(analysis.New(cfg, st)), sbomID
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/analysis/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var status model.AnalysisStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.SbomCount != 1 {
		t.Errorf("Expected 1 sbom, got %d", status.SbomCount)
	}
}

func TestHandleComponent_ByName(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/analysis/component?name=app&descendants=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var results model.PaginatedResults[model.Node]
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if results.Total != 1 {
		t.Fatalf("Expected 1 result, got %d", results.Total)
	}
	node := results.Items[0]
	if node.Name != "app" {
		t.Errorf("Expected app, got %s", node.Name)
	}
	if len(node.Descendants) != 1 || node.Descendants[0].Name != "lib" {
		t.Errorf("Expected descendant lib, got %v", node.Descendants)
	}
}

func TestHandleComponent_ByExpression(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET",
		`/api/v2/analysis/component?q=version%3D%3D%222.0%22`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var results model.PaginatedResults[model.Node]
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if results.Total != 1 || results.Items[0].Name != "lib" {
		t.Errorf("Expected only lib to match, got %+v", results.Items)
	}
}

func TestHandleComponent_InvalidExpression(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/analysis/component?q=license%3D%3D%22MIT%22")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHandleComponent_SelectorRequired(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/analysis/component")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a selector, got %d", rec.Code)
	}

	rec = doRequest(t, server, "GET", "/api/v2/analysis/component?name=app&purl=pkg:rpm/app@1.0")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for two selectors, got %d", rec.Code)
	}
}

func TestHandleComponent_NegativeDepthRejected(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/analysis/component?name=app&descendants=-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative depth, got %d", rec.Code)
	}
}

func TestHandleSbomComponent(t *testing.T) {
	server, sbomID := newTestServer(t)

	target := fmt.Sprintf("/api/v2/sbom/%s/analysis/component?name=app", sbomID)
	rec := doRequest(t, server, "GET", target)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var results model.PaginatedResults[model.Node]
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if results.Total != 1 {
		t.Errorf("Expected 1 result, got %d", results.Total)
	}
}

func TestHandleSbomComponent_InvalidID(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v2/sbom/not-a-uuid/analysis/component?name=app")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed sbom id, got %d", rec.Code)
	}
}

func TestHandleClearCache(t *testing.T) {
	server, _ := newTestServer(t)

	// Load a graph into the cache first.
	doRequest(t, server, "GET", "/api/v2/analysis/component?name=app")

	rec := doRequest(t, server, "DELETE", "/api/v2/analysis/cache")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, server, "GET", "/api/v2/analysis/status")
	var status model.AnalysisStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.GraphCount != 0 {
		t.Errorf("Expected no resident graphs after clearing, got %d", status.GraphCount)
	}
}
