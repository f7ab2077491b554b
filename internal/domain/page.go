package domain

// PageResult is one page of an ordered result set.
type PageResult[T any] struct {
	Items           []*T  `json:"items"`
	TotalItems      int64 `json:"total_items"`
	PageNumber      int   `json:"page_number"`
	PageSize        int   `json:"page_size"`
	TotalPages      int   `json:"total_pages"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}
