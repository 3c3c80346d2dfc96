package encbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWHIPResourceDeleteSucceedsOn200(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewWHIPResource(srv.URL+"/resource/abc", nil)
	require.NoError(t, res.Delete(context.Background()))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestWHIPResourceDeleteErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := NewWHIPResource(srv.URL+"/resource/missing", nil)
	assert.Error(t, res.Delete(context.Background()))
}
