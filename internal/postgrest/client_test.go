package postgrest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryValues(t *testing.T) {
	q := Query{}.Where(Eq("thread_id", "T1")).Order("created_at")
	assert.Equal(t, "order=created_at.asc&thread_id=eq.T1", q.Values().Encode())

	q = Query{}.Where(Eq("a", "x y"), Eq("a", "z"))
	assert.Equal(t, "a=eq.x+y&a=eq.z", q.Values().Encode())

	assert.Empty(t, Query{}.Values().Encode())
}

func TestQueryWhereDoesNotAlias(t *testing.T) {
	base := Query{}.Where(Eq("a", "1"))
	q1 := base.Where(Eq("b", "2"))
	q2 := base.Where(Eq("c", "3"))

	require.Len(t, q1.Filters, 2)
	require.Len(t, q2.Filters, 2)
	assert.Equal(t, "b", q1.Filters[1].Field)
	assert.Equal(t, "c", q2.Filters[1].Field)
}

func TestFilters(t *testing.T) {
	assert.Equal(t, "project_id=eq.P1", Eq("project_id", "P1").String())

	q := Query{}.Where(Eq("thread_id", "a b")).Order("created_at")
	assert.Equal(t, "thread_id=eq.a b&order=created_at.asc", q.String())
	assert.Empty(t, Query{}.String())
}

func TestSelect(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"message_id":"M1"},{"message_id":"M2"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "anon-key")
	rows, err := c.Select(context.Background(), "messages",
		Query{}.Where(Eq("thread_id", "T1")).Order("created_at"))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"message_id":"M1"}`, string(rows[0]))
	assert.Equal(t, "/rest/v1/messages", gotPath)
	assert.Equal(t, "order=created_at.asc&thread_id=eq.T1", gotQuery)
	assert.Equal(t, "anon-key", gotKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)
}

func TestSelectStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Select(context.Background(), "threads", Query{})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "threads", se.Table)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestSelectBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").Select(context.Background(), "threads", Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding threads")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		if r.URL.Path == "/rest/v1/projects" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	status, err := c.Ping(context.Background(), RestPath)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = c.Ping(context.Background(), "/rest/v1/projects")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPingTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k").WithTimeout(time.Second).Ping(context.Background(), RestPath)
	assert.Error(t, err)
}
