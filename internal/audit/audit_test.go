package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPContext_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIPFromContext(ctx))
}

func TestClientIPFromContext_Unset(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ClientIPFromContext(context.Background()))
}

func TestClientIPMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	handler := ClientIPMiddleware(
		func(r *http.Request) string { return "198.51.100.4" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = ClientIPFromContext(r.Context())
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.4", seen)
}
