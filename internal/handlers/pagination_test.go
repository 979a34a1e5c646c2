package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func testContextWithQuery(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+rawQuery, nil)
	return c
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"defaults", "", 1, DefaultPageSize},
		{"explicit", "page=3&pageSize=50", 3, 50},
		{"zero page", "page=0", 1, DefaultPageSize},
		{"negative page", "page=-2", 1, DefaultPageSize},
		{"oversized page size", "pageSize=1000", 1, MaxPageSize},
		{"garbage", "page=abc&pageSize=xyz", 1, DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContextWithQuery(t, tt.query)
			page, pageSize := pageParams(c)
			if page != tt.wantPage || pageSize != tt.wantPageSize {
				t.Errorf("pageParams() = (%d, %d), want (%d, %d)", page, pageSize, tt.wantPage, tt.wantPageSize)
			}
		})
	}
}

func TestCreatePaginatedResponse(t *testing.T) {
	c := testContextWithQuery(t, "page=2&pageSize=10")
	resp := CreatePaginatedResponse(c, []string{"a", "b"}, 25)

	if resp.CurrentPage != 2 || resp.PageSize != 10 {
		t.Errorf("page/size = %d/%d", resp.CurrentPage, resp.PageSize)
	}
	if resp.TotalRows != 25 || resp.TotalPages != 3 {
		t.Errorf("totals = %d rows / %d pages, want 25/3", resp.TotalRows, resp.TotalPages)
	}

	empty := CreatePaginatedResponse(testContextWithQuery(t, ""), nil, 0)
	if empty.TotalPages != 0 {
		t.Errorf("TotalPages for empty set = %d, want 0", empty.TotalPages)
	}
}
