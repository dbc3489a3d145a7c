package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	tests := []struct {
		query      string
		page, size int
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=0", 1, 20},
		{"?page=-2&page_size=500", 1, 20},
		{"?page=abc&page_size=xyz", 1, 20},
		{"?page_size=100", 1, 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/x"+tt.query, nil)
		page, size := Pagination(r)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.size, size, tt.query)
	}
}
