package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newProtectedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/protected", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestSchedulerSecret(t *testing.T) {
	testCases := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid-secret", "s3cret", "s3cret", http.StatusOK},
		{"wrong-secret", "s3cret", "nope", http.StatusUnauthorized},
		{"missing-header", "s3cret", "", http.StatusUnauthorized},
		{"disabled-check", "", "", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newProtectedRouter(SchedulerSecret(tc.configured))

			req := httptest.NewRequest(http.MethodPost, "/protected", nil)
			if tc.header != "" {
				req.Header.Set(HeaderSchedulerSecret, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestAdminKey(t *testing.T) {
	testCases := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid-key", "admin-key", "admin-key", http.StatusOK},
		{"wrong-key", "admin-key", "nope", http.StatusUnauthorized},
		// Unlike the scheduler secret, an unconfigured admin key locks the
		// surface instead of opening it.
		{"unconfigured-locks", "", "anything", http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newProtectedRouter(AdminKey(tc.configured))

			req := httptest.NewRequest(http.MethodPost, "/protected", nil)
			if tc.header != "" {
				req.Header.Set(HeaderAdminKey, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
