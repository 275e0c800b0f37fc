// Package pagination slices ordered collections into fixed-size pages.
//
// Page numbers come straight from the query string: anything that is not a
// positive integer resolves to the first page and numbers past the end resolve
// to the last page, so a request never fails because of its page parameter.
package pagination

import (
	"strconv"
	"strings"
)

// Window is the resolved position of one page inside a collection.
type Window struct {
	Number   int
	NumPages int
	PerPage  int
	Total    int64
	Offset   int
	Limit    int
}

// New resolves raw (usually the "page" query value) against a collection of
// total items split into pages of perPage.
func New(total int64, perPage int, raw string) Window {
	if perPage < 1 {
		perPage = 1
	}
	if total < 0 {
		total = 0
	}
	numPages := int((total + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		// 空集合也有第一页
		numPages = 1
	}

	number, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil, number < 1:
		number = 1
	case number > numPages:
		number = numPages
	}

	return Window{
		Number:   number,
		NumPages: numPages,
		PerPage:  perPage,
		Total:    total,
		Offset:   (number - 1) * perPage,
		Limit:    perPage,
	}
}

// Page is a bounded slice of an ordered collection plus paging metadata.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Number      int   `json:"page"`
	NumPages    int   `json:"num_pages"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPage wraps items fetched for w.
func NewPage[T any](w Window, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		Number:      w.Number,
		NumPages:    w.NumPages,
		PerPage:     w.PerPage,
		Total:       w.Total,
		HasNext:     w.Number < w.NumPages,
		HasPrevious: w.Number > 1,
	}
}

// Len is the number of items on the page.
func (p Page[T]) Len() int { return len(p.Items) }

func (p Page[T]) NextNumber() int {
	if p.HasNext {
		return p.Number + 1
	}
	return p.Number
}

func (p Page[T]) PreviousNumber() int {
	if p.HasPrevious {
		return p.Number - 1
	}
	return p.Number
}

// PageRange lists every page number, used by the paginator template.
func (p Page[T]) PageRange() []int {
	out := make([]int, p.NumPages)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// SlicePage paginates an in-memory collection.
func SlicePage[T any](all []T, perPage int, raw string) Page[T] {
	w := New(int64(len(all)), perPage, raw)
	end := w.Offset + w.Limit
	if end > len(all) {
		end = len(all)
	}
	return NewPage(w, all[w.Offset:end])
}
