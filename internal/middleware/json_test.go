package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"no body", "", "", http.StatusOK},
		{"json", `{"name":"Pistons"}`, "application/json", http.StatusOK},
		{"json with charset", `{"name":"Pistons"}`, "application/json; charset=utf-8", http.StatusOK},
		{"form", "name=Pistons", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"body without type", `{"name":"Pistons"}`, "", http.StatusUnsupportedMediaType},
		{"garbage type", `{}`, ";;", http.StatusUnsupportedMediaType},
	}

	handler := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusOK && !strings.Contains(rr.Body.String(), "unsupported_media_type") {
				t.Errorf("body: got %q", rr.Body.String())
			}
		})
	}
}
