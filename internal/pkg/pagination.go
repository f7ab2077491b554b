package pkg

import (
	"math"

	"github.com/simp-lee/gorepo/internal/domain"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
)

// NormalizePage substitutes defaults for unset (zero) page parameters.
// Negative values are kept so callers can detect them.
func NormalizePage(number, size int) (int, int) {
	if number == 0 {
		number = DefaultPageNumber
	}
	if size == 0 {
		size = DefaultPageSize
	}
	return number, size
}

// TotalPages returns ceil(total/size), or 0 when size is not positive.
func TotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(size)))
}

// SlicePage returns the items of page number (1-based) of the given size.
// Out of range pages, including number < 1 or size < 1, yield an empty slice.
func SlicePage[T any](items []T, number, size int) []T {
	if number < 1 || size < 1 {
		return []T{}
	}
	// Compare page indexes before multiplying so huge values cannot overflow.
	if len(items) == 0 || number-1 > (len(items)-1)/size {
		return []T{}
	}
	start := (number - 1) * size
	end := len(items)
	if size < end-start {
		end = start + size
	}
	return items[start:end]
}

// NewPageResult slices ordered into the requested page. total is the size of
// the unsliced result set.
func NewPageResult[T any](ordered []*T, total int64, number, size int) *domain.PageResult[T] {
	totalPages := TotalPages(total, size)
	return &domain.PageResult[T]{
		Items:           SlicePage(ordered, number, size),
		TotalItems:      total,
		PageNumber:      number,
		PageSize:        size,
		TotalPages:      totalPages,
		HasNextPage:     number < totalPages,
		HasPreviousPage: number > 1,
	}
}
