package validation_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbibletools/exporter/apps/exporter/internal/platform/validation"
	"github.com/globalbibletools/exporter/apps/exporter/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	r.POST("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_Events(t *testing.T) {
	r := newRouter(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"schedule tick", `{"source":"schedule"}`, http.StatusOK},
		{"queue record", `{"source":"queue","records":[{"messageId":"1-0","body":"{\"code\":\"eng\"}"}]}`, http.StatusOK},
		{"queue without records", `{"source":"queue"}`, http.StatusOK},
		{"record without body", `{"source":"queue","records":[{"messageId":"1-0"}]}`, http.StatusBadRequest},
		{"unknown source", `{"source":"webhook"}`, http.StatusBadRequest},
		{"missing source", `{"records":[]}`, http.StatusBadRequest},
		{"body not a string", `{"source":"queue","records":[{"body":{"code":"eng"}}]}`, http.StatusBadRequest},
		{"not json", `source=schedule`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/events", tc.body)

			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusBadRequest {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestMiddleware_HealthIsNotValidated(t *testing.T) {
	w := do(newRouter(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RejectsUnparseableDocument(t *testing.T) {
	_, err := validation.New([]byte(`not yaml`))
	assert.Error(t, err)
}
