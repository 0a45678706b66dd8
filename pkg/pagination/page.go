// Package pagination normalizes untrusted paging input. Offset pages back
// the list endpoints; cursors back append-only feeds such as stock history.
package pagination

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPage      = 0
	DefaultSize      = 10
	MaxSize          = 100
	DefaultSortBy    = "createdAt"
	DirectionAsc     = "ASC"
	DirectionDesc    = "DESC"
	DefaultDirection = DirectionDesc

	// MaxPage keeps Page*Size within int for every allowed size.
	MaxPage = math.MaxInt / MaxSize
)

// PageRequest is an already-normalized page/size/sort tuple. Build it with
// NewPageRequest; downstream code never re-validates it.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    string
	Direction string
}

// NewPageRequest clamps page and size and fills in sort defaults. The
// direction is upper-cased but otherwise passed through; the repository
// rejects values it cannot order by.
func NewPageRequest(page, size int, sortBy, direction string) PageRequest {
	switch {
	case page < 0:
		page = DefaultPage
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case size <= 0:
		size = DefaultSize
	case size > MaxSize:
		size = MaxSize
	}

	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		sortBy = DefaultSortBy
	}

	direction = strings.ToUpper(strings.TrimSpace(direction))
	if direction == "" {
		direction = DefaultDirection
	}

	return PageRequest{Page: page, Size: size, SortBy: sortBy, Direction: direction}
}

// DefaultPageRequest is the first page with default size and ordering.
func DefaultPageRequest() PageRequest {
	return NewPageRequest(DefaultPage, DefaultSize, "", "")
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// String is stable for equal requests; cache keys rely on it.
func (p PageRequest) String() string {
	return fmt.Sprintf("p=%d,s=%d,sb=%s,o=%s", p.Page, p.Size, p.SortBy, p.Direction)
}

// Page is a slice of results plus the request that produced it.
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// NewPage wraps items, never returning a nil slice so JSON stays an array.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: req.Page, Size: req.Size, Total: total}
}

// Map converts page items while keeping the paging metadata.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, Page: p.Page, Size: p.Size, Total: p.Total}
}
