package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetDeclaration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/declare", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("showHash"))
		w.Write([]byte(`{"class": "ADC"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	decl, err := c.GetDeclaration(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "ADC", decl["class"])
}

func TestClient_GetDeclaration_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("showHash"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	decl, err := c.GetDeclaration(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, decl, "an empty remote state decodes to nil")
}

func TestClient_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL, Username: "admin", Password: "secret"})
	_, err := c.GetDeclaration(context.Background(), false)
	require.NoError(t, err)
}

func TestClient_PostDeclaration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/declare/t1,t2", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("async"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id": "task-42"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	id, err := c.PostDeclaration(context.Background(), map[string]interface{}{"class": "ADC"}, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, "task-42", id)
}

func TestClient_PostDeclaration_SyncResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ignored"}`)) // 200
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	_, err := c.PostDeclaration(context.Background(), map[string]interface{}{}, nil)
	assert.ErrorIs(t, err, ErrUnexpectedSyncResponse)
}

func TestClient_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("tenant t1 invalid\n"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	_, err := c.PostDeclaration(context.Background(), map[string]interface{}{}, nil)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnprocessableEntity, remote.StatusCode)
	assert.Equal(t, http.MethodPost, remote.Method)
	assert.Equal(t, "tenant t1 invalid", remote.Body)
}

func TestClient_GetTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task", r.URL.Path)
		w.Write([]byte(`{"items": [{"id": "task-1"}, {"id": "task-2"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL})
	items, err := c.GetTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "task-1", items[0]["id"])
}
