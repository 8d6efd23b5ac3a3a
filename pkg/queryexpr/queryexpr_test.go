package queryexpr

import "testing"

func TestParse_ValidExpression(t *testing.T) {
	expr, err := Parse(`name == "openssl"`)
	if err != nil {
		t.Fatalf("Expected expression to parse, got error: %v", err)
	}
	if expr.String() != `name == "openssl"` {
		t.Errorf("Expected original text to round-trip, got %q", expr.String())
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(`license == "MIT"`)
	if err == nil {
		t.Fatal("Expected error for field outside the evaluable set")
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse(`name == `)
	if err == nil {
		t.Fatal("Expected error for malformed expression")
	}
}

func TestApply_Match(t *testing.T) {
	expr, err := Parse(`name == "openssl" && version.startsWith("3.")`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	matched := expr.Apply(map[string]any{
		"name":    "openssl",
		"version": "3.0.7",
	})
	if !matched {
		t.Error("Expected expression to match")
	}
}

func TestApply_NoMatch(t *testing.T) {
	expr, err := Parse(`name == "openssl"`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if expr.Apply(map[string]any{"name": "zlib"}) {
		t.Error("Expected expression not to match")
	}
}

func TestApply_MissingFieldIsNoMatch(t *testing.T) {
	// version is an evaluable field, but this node does not carry it.
	expr, err := Parse(`version == "1.0"`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if expr.Apply(map[string]any{"name": "zlib"}) {
		t.Error("Expected missing field to mean no match")
	}
}

func TestApply_ListMembership(t *testing.T) {
	expr, err := Parse(`"pkg:rpm/redhat/openssl@3.0.7" in purl`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	matched := expr.Apply(map[string]any{
		"purl": []string{"pkg:rpm/redhat/openssl@3.0.7", "pkg:generic/openssl@3.0.7"},
	})
	if !matched {
		t.Error("Expected purl membership to match")
	}
}

func TestApply_NonBooleanResultIsNoMatch(t *testing.T) {
	expr, err := Parse(`name`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if expr.Apply(map[string]any{"name": "openssl"}) {
		t.Error("Expected non-boolean result to mean no match")
	}
}
