package model

// Relationship represents the kind of a directed edge between two SBOM nodes
type Relationship string

const (
	RelationshipDescribes         Relationship = "describes"
	RelationshipContains          Relationship = "contains"
	RelationshipDependsOn         Relationship = "depends_on"
	RelationshipDevDependsOn      Relationship = "dev_depends_on"
	RelationshipOptionalDependsOn Relationship = "optional_depends_on"
	RelationshipBuildDependsOn    Relationship = "build_depends_on"
	RelationshipGeneratedFrom     Relationship = "generated_from"
	RelationshipAncestorOf        Relationship = "ancestor_of"
	RelationshipVariantOf         Relationship = "variant_of"
	RelationshipPackageOf         Relationship = "package_of"
	RelationshipUndefined         Relationship = "undefined"
)

// QueryOptions bounds a traversal. Depth limits of zero disable the
// respective direction; an empty Relationships slice allows all kinds.
type QueryOptions struct {
	Ancestors     int            `json:"ancestors"`
	Descendants   int            `json:"descendants"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// BaseNode carries the attributes shared by every node projection
type BaseNode struct {
	SbomID  string   `json:"sbom_id"`
	NodeID  string   `json:"node_id"`
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Purls   []string `json:"purl,omitempty"`
	Cpes    []string `json:"cpe,omitempty"`
}

// Node is one entry in an analysis result. Ancestors and Descendants
// hold the nodes reached from it, nested for hierarchy rendering.
type Node struct {
	BaseNode
	// Relationship labels the edge this node was reached through.
	// It is nil for starting nodes.
	Relationship *Relationship `json:"relationship,omitempty"`
	Ancestors    []Node        `json:"ancestors,omitempty"`
	Descendants  []Node        `json:"descendants,omitempty"`
}

// AnalysisStatus reports how many SBOMs are known versus how many
// graphs are currently resident in the cache.
type AnalysisStatus struct {
	SbomCount  uint32 `json:"sbom_count"`
	GraphCount uint32 `json:"graph_count"`
}
