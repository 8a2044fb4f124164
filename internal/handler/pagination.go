package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/recipe-share/internal/repository"
	"github.com/sakif/recipe-share/internal/service"
)

// Page is the envelope of every paginated listing. Next and Previous are
// absolute URLs, null on the last and first page.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paging is the parsed ?page=&limit= pair.
type paging struct {
	page int
	size int
}

// parsePaging reads page and limit. Missing or invalid values fall back to
// page 1 and defaultSize.
func parsePaging(r *http.Request, defaultSize int) paging {
	q := r.URL.Query()
	p := paging{page: 1, size: defaultSize}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.size = n
	}
	if p.size <= 0 {
		p.size = service.DefaultPageSize
	}
	if p.size > service.MaxPageSize {
		p.size = service.MaxPageSize
	}
	return p
}

func (p paging) options() repository.ListOptions {
	return service.Page(p.page, p.size)
}

// newPage wraps one page of results. Page links keep every other query
// parameter of the request.
func newPage[T any](r *http.Request, p paging, count int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	out := Page[T]{Count: count, Results: results}
	if p.page*p.size < count {
		next := pageURL(r, p.page+1)
		out.Next = &next
	}
	if p.page > 1 {
		prev := pageURL(r, p.page-1)
		out.Previous = &prev
	}
	return out
}

func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
