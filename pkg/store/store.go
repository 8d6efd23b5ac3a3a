package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/model"
)

// NodeKind is the structural kind of an SBOM graph row
type NodeKind string

const (
	NodeKindPackage  NodeKind = "package"
	NodeKindExternal NodeKind = "external"
	NodeKindOther    NodeKind = "other"
)

// ExternalType identifies the ecosystem an external reference was declared in
type ExternalType string

const (
	ExternalTypeSPDX            ExternalType = "spdx"
	ExternalTypeCycloneDX       ExternalType = "cyclonedx"
	ExternalTypeVendorComponent ExternalType = "vendor_component"
)

// DiscriminatorType identifies how an external reference discriminates
// between candidate target documents.
type DiscriminatorType string

const (
	DiscriminatorSha256 DiscriminatorType = "sha256"
	DiscriminatorSha1   DiscriminatorType = "sha1"
	DiscriminatorMD5    DiscriminatorType = "md5"
)

// Sbom is one ingested SBOM document
type Sbom struct {
	SbomID     uuid.UUID `json:"sbom_id"`
	DocumentID string    `json:"document_id"`
	// Sha256 is the checksum of the source document the SBOM was
	// ingested from, used by SPDX external document resolution.
	Sha256 string `json:"sha256,omitempty"`
}

// NodeRow is one SBOM-internal node as stored. Variant fields are
// populated according to Kind.
type NodeRow struct {
	SbomID uuid.UUID `json:"sbom_id"`
	NodeID string    `json:"node_id"`
	Name   string    `json:"name"`
	Kind   NodeKind  `json:"kind"`

	// package fields
	Version string   `json:"version,omitempty"`
	Purls   []string `json:"purl,omitempty"`
	Cpes    []string `json:"cpe,omitempty"`

	// external reference fields
	ExternalDocRef  string `json:"external_doc_ref,omitempty"`
	ExternalNodeRef string `json:"external_node_ref,omitempty"`
}

// RelationshipRow is one directed, labeled edge as stored
type RelationshipRow struct {
	SbomID       uuid.UUID          `json:"sbom_id"`
	SourceNodeID string             `json:"source_node_id"`
	TargetNodeID string             `json:"target_node_id"`
	Relationship model.Relationship `json:"relationship"`
}

// GraphRows holds everything needed to build one SBOM's graph
type GraphRows struct {
	Nodes         []NodeRow
	Relationships []RelationshipRow
}

// ExternalReference is the stored record backing an external node
type ExternalReference struct {
	SbomID             uuid.UUID         `json:"sbom_id"`
	NodeID             string            `json:"node_id"`
	Type               ExternalType      `json:"type"`
	ExternalDocRef     string            `json:"external_doc_ref"`
	ExternalNodeRef    string            `json:"external_node_ref"`
	DiscriminatorType  DiscriminatorType `json:"discriminator_type,omitempty"`
	DiscriminatorValue string            `json:"discriminator_value,omitempty"`
}

// NodeChecksum is a content checksum recorded for one node
type NodeChecksum struct {
	SbomID uuid.UUID `json:"sbom_id"`
	NodeID string    `json:"node_id"`
	Value  string    `json:"value"`
}

// PackageRef identifies a package node together with its version,
// used by version-based alias resolution.
type PackageRef struct {
	SbomID  uuid.UUID `json:"sbom_id"`
	NodeID  string    `json:"node_id"`
	Version string    `json:"version"`
}

// Document bundles all rows of one SBOM for bulk insertion
type Document struct {
	Sbom               Sbom                `json:"sbom"`
	Nodes              []NodeRow           `json:"nodes"`
	Relationships      []RelationshipRow   `json:"relationships"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	Checksums          []NodeChecksum      `json:"checksums,omitempty"`
}

// Source is the read side of the row store consumed by the analysis
// engine. Lookup methods return (nil, nil) when no matching row exists;
// a non-nil error always wraps ErrDataAccess and indicates a storage
// failure, never a miss.
type Source interface {
	// FetchSboms lists all known SBOM documents.
	FetchSboms(ctx context.Context) ([]Sbom, error)

	// FetchGraphRows returns all node and relationship rows of one SBOM.
	FetchGraphRows(ctx context.Context, sbomID uuid.UUID) (*GraphRows, error)

	// FetchExternalReference looks up the external reference record for
	// a node id.
	FetchExternalReference(ctx context.Context, nodeID string) (*ExternalReference, error)

	// FindSbomBySourceSha256 resolves an SBOM by its source document checksum.
	FindSbomBySourceSha256(ctx context.Context, sha256 string) (*Sbom, error)

	// FindSbomByDocumentID resolves an SBOM by its document identifier.
	FindSbomByDocumentID(ctx context.Context, documentID string) (*Sbom, error)

	// FetchNodeChecksum looks up the checksum recorded for a node id.
	FetchNodeChecksum(ctx context.Context, nodeID string) (*NodeChecksum, error)

	// FindNodeByChecksum finds a node in a different SBOM sharing the
	// given checksum value.
	FindNodeByChecksum(ctx context.Context, value string, excludeSbom uuid.UUID) (*NodeChecksum, error)

	// FetchPackageRef looks up a package node by node id.
	FetchPackageRef(ctx context.Context, nodeID string) (*PackageRef, error)

	// FindPackageByVersion finds a package node in a different SBOM
	// with the same version string.
	FindPackageByVersion(ctx context.Context, version string, excludeSbom uuid.UUID) (*PackageRef, error)
}

// ErrDataAccess marks storage and query failures. Everything returned
// by a Source error-wise unwraps to this sentinel.
var ErrDataAccess = errors.New("data access failure")

// dataAccessError attaches the failing operation to ErrDataAccess
func dataAccessError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDataAccess, err)
}
