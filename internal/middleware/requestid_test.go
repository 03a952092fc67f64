package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantEcho bool
	}{
		{"no header generates an id", "", false},
		{"well-formed id is kept", "relay-sub-42.retry_1", true},
		{"id at the length limit is kept", strings.Repeat("a", maxRequestIDLength), true},
		{"overlong id is replaced", strings.Repeat("a", maxRequestIDLength+1), false},
		{"log injection is replaced", "abc\nlevel=ERROR", false},
		{"spaces are replaced", "civ 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inContext string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inContext = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/civilian/submit", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(RequestIDHeader)
			if got != inContext {
				t.Errorf("response header %q differs from context id %q", got, inContext)
			}
			if tt.wantEcho {
				if got != tt.incoming {
					t.Errorf("expected id %q to be kept, got %q", tt.incoming, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("expected a generated UUID, got %q", got)
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stats/summary", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty string, got %q", id)
	}
}
