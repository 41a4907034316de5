package httputil

import (
	"strconv"
)

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Paginate cuts items to the requested 1-based page. Out-of-range pages are empty.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = len(items)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	if page < 1 {
		page = 1
	}

	// bounds are checked before multiplying so huge page numbers cannot wrap
	total := len(items)
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := total
	if pageSize < total-start {
		end = start + pageSize
	}
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	return Page[T]{
		Items: append([]T{}, items[start:end]...),
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPages,
		},
	}
}

// ParsePage reads a 1-based page number, defaulting to 1.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
