package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/faceterm/internal/api"
)

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("json error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, r.Header.Get("X-Request-Id"))
			require.Equal(t, "/v1/organizations/a%2Fb/terminals", r.URL.EscapedPath())
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"terminal registered to another organization"}`))
		}))
		defer srv.Close()

		c := New(Config{ServerURL: srv.URL + "/"})
		_, err := c.AddTerminal(ctx, "a/b", "1461173")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusConflict, apiErr.StatusCode)
		require.Equal(t, "terminal registered to another organization", apiErr.Message)
	})

	t.Run("plain error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer srv.Close()

		c := New(Config{ServerURL: srv.URL})
		_, err := c.AddPerson(ctx, "abcd", api.PersonRequest{UserID: "u1"})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		require.Equal(t, "Bad Gateway", apiErr.Message)
	})
}
