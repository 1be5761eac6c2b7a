// Package pagination parses page/per_page query parameters and builds the
// paginated list envelope shared by the list endpoints.
package pagination

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

// Defaults for list endpoints.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200

	// MaxPage keeps Offset within int32 for every allowed per_page.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Params is a parsed page request.
type Params struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Parse reads page and per_page from the query string.
func Parse(r *http.Request) (Params, error) {
	q := r.URL.Query()
	p := Params{Page: 1, PerPage: DefaultPerPage}

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 || page > MaxPage {
			return p, fmt.Errorf("page must be between 1 and %d", MaxPage)
		}
		p.Page = page
	}

	if s := q.Get("per_page"); s != "" {
		perPage, err := strconv.Atoi(s)
		if err != nil || perPage < 1 || perPage > MaxPerPage {
			return p, fmt.Errorf("per_page must be between 1 and %d", MaxPerPage)
		}
		p.PerPage = perPage
	}

	return p, nil
}

// Response wraps a list with pagination info.
type Response struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResponse builds the envelope for one page of items.
func NewResponse(items any, total int64, p Params) *Response {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.PerPage)))
	}
	return &Response{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
	}
}
