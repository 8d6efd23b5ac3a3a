package model

// Paginated selects a window of a result list
type Paginated struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// PaginatedResults is a window of items plus the total count before windowing
type PaginatedResults[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// Paginate applies the offset/limit window to items. A limit of zero
// means no limit. Total always reflects the full list.
func Paginate[T any](p Paginated, items []T) PaginatedResults[T] {
	total := len(items)

	start := p.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	end := total
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}

	return PaginatedResults[T]{
		Items: items[start:end],
		Total: total,
	}
}
