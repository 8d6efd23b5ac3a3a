package analysis

import (
	"github.com/ritzau/sbom-analyzer/pkg/graph"
	"github.com/ritzau/sbom-analyzer/pkg/queryexpr"
)

// ComponentRefKind selects which node attribute an exact reference
// matches on.
type ComponentRefKind int

const (
	RefID ComponentRefKind = iota
	RefName
	RefPurl
	RefCpe
)

// ComponentReference matches nodes by one exact attribute: node id or
// name equality, or containment in the node's purl or cpe set.
type ComponentReference struct {
	Kind  ComponentRefKind
	Value string
}

// GraphQuery locates starting nodes for a traversal. Exactly one of
// Component or Expression is set.
type GraphQuery struct {
	Component  *ComponentReference
	Expression *queryexpr.Expression
}

// ByID matches nodes whose node id equals id
func ByID(id string) GraphQuery {
	return GraphQuery{Component: &ComponentReference{Kind: RefID, Value: id}}
}

// ByName matches nodes whose name equals name
func ByName(name string) GraphQuery {
	return GraphQuery{Component: &ComponentReference{Kind: RefName, Value: name}}
}

// ByPurl matches package nodes whose purl set contains purl
func ByPurl(purl string) GraphQuery {
	return GraphQuery{Component: &ComponentReference{Kind: RefPurl, Value: purl}}
}

// ByCpe matches package nodes whose cpe set contains cpe
func ByCpe(cpe string) GraphQuery {
	return GraphQuery{Component: &ComponentReference{Kind: RefCpe, Value: cpe}}
}

// ByExpression matches nodes the filter expression evaluates true for
func ByExpression(expr *queryexpr.Expression) GraphQuery {
	return GraphQuery{Expression: expr}
}

// matches checks whether the node at id satisfies the query
func matches(pg *graph.PackageGraph, id int64, query GraphQuery) bool {
	node := pg.NodeAt(id)
	if node == nil {
		return false
	}

	if ref := query.Component; ref != nil {
		switch ref.Kind {
		case RefID:
			return node.NodeID == ref.Value
		case RefName:
			return node.Name == ref.Value
		case RefPurl:
			return node.Kind == graph.KindPackage && node.Package != nil &&
				containsString(node.Package.Purls, ref.Value)
		case RefCpe:
			return node.Kind == graph.KindPackage && node.Package != nil &&
				containsString(node.Package.Cpes, ref.Value)
		default:
			return false
		}
	}

	if query.Expression != nil {
		return query.Expression.Apply(fieldContext(node))
	}

	return false
}

// fieldContext builds the evaluable field set for one node. Base
// fields are always bound; the variant adds its own on top, so an
// expression referencing a field the variant does not carry simply
// never matches.
func fieldContext(node *graph.Node) map[string]any {
	fields := map[string]any{
		"sbom_id": node.SbomID.String(),
		"node_id": node.NodeID,
		"name":    node.Name,
	}

	switch node.Kind {
	case graph.KindPackage:
		if node.Package != nil {
			fields["version"] = node.Package.Version
			fields["purl"] = node.Package.Purls
			fields["cpe"] = node.Package.Cpes
		}
	case graph.KindExternal:
		if node.External != nil {
			fields["external_document_reference"] = node.External.ExternalDocumentReference
			fields["external_node_id"] = node.External.ExternalNodeID
		}
	case graph.KindOther:
		// no variant fields
	}

	return fields
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
