package graph

import (
	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/model"
)

// NodeKind discriminates the node variants. The set is closed; every
// consumer switches exhaustively on it.
type NodeKind int

const (
	// KindOther covers document-structural nodes that are neither
	// packages nor external references.
	KindOther NodeKind = iota
	KindPackage
	KindExternal
)

// Node is one vertex of an SBOM graph. Identity within a graph is
// (SbomID, NodeID); the same real-world component can appear as
// distinct nodes in distinct SBOM graphs.
type Node struct {
	SbomID uuid.UUID
	NodeID string
	Name   string
	Kind   NodeKind

	// Package is set iff Kind == KindPackage.
	Package *PackageData
	// External is set iff Kind == KindExternal.
	External *ExternalData
}

// PackageData holds the package-specific attributes of a node
type PackageData struct {
	Version string
	Purls   []string
	Cpes    []string
}

// ExternalData marks a node that stands in for a component described
// in a different SBOM document.
type ExternalData struct {
	ExternalDocumentReference string
	ExternalNodeID            string
}

// Base projects the node into its result record attributes
func (n *Node) Base() model.BaseNode {
	base := model.BaseNode{
		SbomID: n.SbomID.String(),
		NodeID: n.NodeID,
		Name:   n.Name,
	}
	if n.Kind == KindPackage && n.Package != nil {
		base.Version = n.Package.Version
		base.Purls = n.Package.Purls
		base.Cpes = n.Package.Cpes
	}
	return base
}
