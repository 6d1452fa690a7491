package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 24
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page at the default size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// FromRequest reads page and per_page (alias limit) from the query string.
// Out-of-range or malformed values fall back to the defaults.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	p := DefaultParams()

	if v, ok := positive(q.Get("page")); ok {
		p.Page = v
	}

	size := q.Get("per_page")
	if size == "" {
		size = q.Get("limit")
	}
	if v, ok := positive(size); ok && v <= MaxPerPage {
		p.PerPage = v
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

func positive(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}
