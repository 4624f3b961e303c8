package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sortable fields accepted by PageRequest.Sort.
var SortFields = []string{"id", "title", "status", "priority", "dueDate", "createdAt", "updatedAt"}

// PageRequest selects one page of a sorted result. Page is 0-based.
type PageRequest struct {
	Page      int
	Size      int
	Sort      string
	Direction SortDirection
}

// DefaultPageRequest is page 0 of DefaultPageSize sorted by id ascending.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, Sort: "id", Direction: SortAsc}
}

// Normalize fills defaults and rejects out-of-range values.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page < 0 {
		return p, fmt.Errorf("page must not be negative")
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.Size < 0 || p.Size > MaxPageSize {
		return p, fmt.Errorf("size must be between 1 and %d", MaxPageSize)
	}
	if p.Sort == "" {
		p.Sort = "id"
	}
	if !validSortField(p.Sort) {
		return p, fmt.Errorf("cannot sort by %q", p.Sort)
	}
	switch SortDirection(strings.ToLower(string(p.Direction))) {
	case "", SortAsc:
		p.Direction = SortAsc
	case SortDesc:
		p.Direction = SortDesc
	default:
		return p, fmt.Errorf("direction must be asc or desc")
	}
	return p, nil
}

// Offset is the number of items before the page. It saturates at math.MaxInt so a page
// far past the end stays past the end instead of wrapping around.
func (p PageRequest) Offset() int {
	if p.Size > 0 && p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

func validSortField(f string) bool {
	for _, s := range SortFields {
		if s == f {
			return true
		}
	}
	return false
}

// Page is the envelope returned for paginated listings.
type Page[T any] struct {
	Items      []T   `json:"tasks"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalTasks"`
	TotalPages int   `json:"totalPages"`
}

// NewPage computes TotalPages from total and the request's size.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		TotalItems: total,
		TotalPages: pages,
	}
}

// MapPage converts the items of a page, keeping its metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, fn(item))
	}
	return Page[U]{
		Items:      out,
		Page:       p.Page,
		Size:       p.Size,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}
}
