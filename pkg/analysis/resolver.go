package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/store"
)

// ResolvedSbom is the outcome of cross-document resolution: an
// external reference actually points at this node in this SBOM.
type ResolvedSbom struct {
	SbomID uuid.UUID
	NodeID string
}

// resolveExternalSbom determines which SBOM and node an external node
// points at. A nil result means the reference cannot be resolved and
// the traversal branch simply stops there; lookup failures on this
// path collapse to a miss as well, since a broken reference in one
// document must not fail the whole request.
//
// The strategy is keyed by the ecosystem the reference was declared in:
//
//   - SPDX: the discriminator names the target document's checksum; only
//     sha256 discriminators are supported, anything else is a miss.
//   - CycloneDX: the document identifier urn:cdx:<doc_ref>/<version> is
//     looked up directly.
//   - Vendor component aliases: best-effort matching, first by shared
//     node checksum, then by shared package version. Both steps can
//     produce false matches when unrelated SBOMs coincidentally share a
//     checksum or version string; this mirrors how such references are
//     published and is accepted as a documented limitation.
func resolveExternalSbom(ctx context.Context, src store.Source, nodeID string) *ResolvedSbom {
	ref, err := src.FetchExternalReference(ctx, nodeID)
	if err != nil || ref == nil {
		return nil
	}

	switch ref.Type {
	case store.ExternalTypeSPDX:
		return resolveSPDX(ctx, src, ref)
	case store.ExternalTypeCycloneDX:
		return resolveCycloneDX(ctx, src, ref)
	case store.ExternalTypeVendorComponent:
		return resolveVendorComponent(ctx, src, ref)
	default:
		return nil
	}
}

func resolveSPDX(ctx context.Context, src store.Source, ref *store.ExternalReference) *ResolvedSbom {
	if ref.DiscriminatorValue == "" {
		return nil
	}
	if ref.DiscriminatorType != store.DiscriminatorSha256 {
		return nil
	}

	sbom, err := src.FindSbomBySourceSha256(ctx, ref.DiscriminatorValue)
	if err != nil || sbom == nil {
		return nil
	}

	return &ResolvedSbom{
		SbomID: sbom.SbomID,
		NodeID: ref.ExternalNodeRef,
	}
}

func resolveCycloneDX(ctx context.Context, src store.Source, ref *store.ExternalReference) *ResolvedSbom {
	if ref.DiscriminatorValue == "" {
		return nil
	}

	documentID := fmt.Sprintf("urn:cdx:%s/%s", ref.ExternalDocRef, ref.DiscriminatorValue)

	sbom, err := src.FindSbomByDocumentID(ctx, documentID)
	if err != nil || sbom == nil {
		return nil
	}

	return &ResolvedSbom{
		SbomID: sbom.SbomID,
		NodeID: ref.ExternalNodeRef,
	}
}

func resolveVendorComponent(ctx context.Context, src store.Source, ref *store.ExternalReference) *ResolvedSbom {
	// The external node ref is assumed to carry a recorded checksum;
	// another SBOM's node sharing that checksum value is the target.
	sum, err := src.FetchNodeChecksum(ctx, ref.ExternalNodeRef)
	if err == nil && sum != nil {
		match, err := src.FindNodeByChecksum(ctx, sum.Value, sum.SbomID)
		if err != nil || match == nil {
			return nil
		}
		return &ResolvedSbom{
			SbomID: match.SbomID,
			NodeID: match.NodeID,
		}
	}

	// No checksum recorded: fall back to matching another SBOM's
	// package node with the same version string.
	pkg, err := src.FetchPackageRef(ctx, ref.ExternalNodeRef)
	if err != nil || pkg == nil {
		return nil
	}
	match, err := src.FindPackageByVersion(ctx, pkg.Version, pkg.SbomID)
	if err != nil || match == nil {
		return nil
	}
	return &ResolvedSbom{
		SbomID: match.SbomID,
		NodeID: match.NodeID,
	}
}
