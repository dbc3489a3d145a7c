package api

import (
	"net/http"
	"strconv"
)

// Pagination reads page and page_size, defaulting to 1 and 20 and capping
// the size at 100.
func Pagination(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
