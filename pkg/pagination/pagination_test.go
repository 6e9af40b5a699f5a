package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Params(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=0", DefaultLimit, 0},
		{"?limit=abc&offset=-3", DefaultLimit, 0},
		{"?offset=40", DefaultLimit, 40},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromContext(contextWithQuery(tt.query))
			if p.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, p.Limit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, p.Offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 5, 2, 0)
	if !r.HasMore {
		t.Error("expected has_more with 5 total and 2 returned")
	}
	if r.Total != 5 || r.Limit != 2 || r.Offset != 0 {
		t.Errorf("unexpected response fields: %+v", r)
	}

	r = NewResponse([]string{"e"}, 5, 2, 4)
	if r.HasMore {
		t.Error("expected no more results on the last page")
	}
}
