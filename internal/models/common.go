package models

import "errors"

// Sentinel errors shared by repositories and services so callers can map
// them onto transport status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPagination returns default pagination settings.
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 25,
	}
}

// Offset calculates the SQL offset for the current page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size as limit.
func (p Pagination) Limit() int {
	if p.PageSize < 1 {
		return 25
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// TotalPages calculates the total number of pages.
func (p Pagination) TotalPages(total int) int {
	if p.PageSize <= 0 {
		return 1
	}
	pages := total / p.PageSize
	if total%p.PageSize > 0 {
		pages++
	}
	if pages < 1 {
		return 1
	}
	return pages
}

// NewPagination clamps page and size into range.
func NewPagination(page, size int) Pagination {
	p := Pagination{Page: page, PageSize: size}
	if p.Page < 1 {
		p.Page = 1
	}
	p.PageSize = p.Limit()
	return p
}
