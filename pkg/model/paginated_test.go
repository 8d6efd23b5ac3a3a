package model

import "testing"

func TestPaginate_NoLimit(t *testing.T) {
	items := []int{1, 2, 3, 4}

	results := Paginate(Paginated{}, items)

	if results.Total != 4 {
		t.Errorf("Expected total 4, got %d", results.Total)
	}
	if len(results.Items) != 4 {
		t.Errorf("Expected all 4 items, got %d", len(results.Items))
	}
}

func TestPaginate_Window(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	results := Paginate(Paginated{Offset: 1, Limit: 2}, items)

	if results.Total != 5 {
		t.Errorf("Expected total 5, got %d", results.Total)
	}
	if len(results.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(results.Items))
	}
	if results.Items[0] != 2 || results.Items[1] != 3 {
		t.Errorf("Expected items [2 3], got %v", results.Items)
	}
}

func TestPaginate_OffsetPastEnd(t *testing.T) {
	items := []int{1, 2}

	results := Paginate(Paginated{Offset: 10, Limit: 5}, items)

	if results.Total != 2 {
		t.Errorf("Expected total 2, got %d", results.Total)
	}
	if len(results.Items) != 0 {
		t.Errorf("Expected no items, got %v", results.Items)
	}
}

func TestPaginate_LimitPastEnd(t *testing.T) {
	items := []int{1, 2, 3}

	results := Paginate(Paginated{Offset: 2, Limit: 10}, items)

	if len(results.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(results.Items))
	}
	if results.Items[0] != 3 {
		t.Errorf("Expected item 3, got %d", results.Items[0])
	}
}

func TestPaginate_NegativeOffset(t *testing.T) {
	items := []int{1, 2}

	results := Paginate(Paginated{Offset: -3}, items)

	if len(results.Items) != 2 {
		t.Errorf("Expected all items for negative offset, got %v", results.Items)
	}
}

func TestPaginate_Empty(t *testing.T) {
	results := Paginate(Paginated{Limit: 10}, []string{})

	if results.Total != 0 {
		t.Errorf("Expected total 0, got %d", results.Total)
	}
	if len(results.Items) != 0 {
		t.Errorf("Expected no items, got %v", results.Items)
	}
}
