package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 100
	maxPerPage     = 1000
)

func parsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = parsePositiveInt(r.URL.Query().Get("page"), 1)
	perPage = parsePositiveInt(r.URL.Query().Get("per_page"), defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func paginateSlice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page-1 > len(items)/perPage {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// writePage paginates items and reports the unpaginated size in X-Total-Count.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, perPage := parsePagination(r, defaultPerPage, maxPerPage)
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	annotateRequest(r, attrResultCount.Int(len(items)))
	out := paginateSlice(items, page, perPage)
	if out == nil {
		out = []T{}
	}
	jsonResponse(w, http.StatusOK, out)
}
