package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, LoginRequest{Email: "ana@example.com", Password: "secret123"}, body)

		_, _ = w.Write([]byte(`{"token":"tok"}`))
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL+"/").Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestClient_AuthorizedCalls(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		seen = append(seen, r.Method+" "+r.URL.Path)

		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/users" {
				_, _ = w.Write([]byte(`{"users":[{"id":"u1","name":"Ana","email":"ana@example.com","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"Ana","email":"ana@example.com","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}}`))
		case http.MethodPut:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"name": "Ana B"}, body)
			_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"Ana B","email":"ana@example.com","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-02T00:00:00Z"}}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := NewClient(srv.URL)

	users, err := client.ListUsers(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ana@example.com", users[0].Email)

	user, err := client.GetUser(ctx, "tok", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)

	name := "Ana B"
	updated, err := client.UpdateUser(ctx, "tok", "u1", UpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana B", updated.Name)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, client.DeleteUser(ctx, "tok", "u1"))

	assert.Equal(t, []string{"GET /users", "GET /users/u1", "PUT /users/u1", "DELETE /users/u1"}, seen)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"email already registered"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Register(context.Background(), RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret123"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "email already registered", apiErr.Message)
	assert.True(t, IsStatus(err, http.StatusConflict))

	_, err = client.Login(context.Background(), LoginRequest{})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed with status 502", apiErr.Message)
	assert.False(t, IsStatus(err, http.StatusConflict))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Login(context.Background(), LoginRequest{})
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr), "transport failures are not API errors")
}
