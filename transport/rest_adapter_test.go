package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-orderfeed/core"
)

func TestRESTAdapter_DoReturnsNonSuccessResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected authorization header, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected query param page=2, got %q", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("conflict"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL + "/x",
		Query:   map[string]string{"page": "2"},
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Body:    []byte(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusConflict || res.Success() {
		t.Fatalf("expected 409 response, got %d", res.StatusCode)
	}
	if string(res.Body) != "conflict" {
		t.Fatalf("unexpected body %q", res.Body)
	}
}

func TestRESTAdapter_ConnectionFailureIsRemoteUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRESTAdapter(nil).Do(context.Background(), Request{URL: url, Timeout: time.Second})
	if err == nil {
		t.Fatalf("expected connection failure")
	}
	if !core.IsTransient(err) {
		t.Fatalf("expected remote unavailable text code, got %v", err)
	}
}

func TestRESTAdapter_EnforcesBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	_, err := NewRESTAdapter(server.Client()).Do(context.Background(), Request{
		URL:                  server.URL,
		MaxResponseBodyBytes: 16,
	})
	if err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Fatalf("expected body limit error, got %v", err)
	}
}

func TestRESTAdapter_DetachedIgnoresCallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res, err := NewRESTAdapter(server.Client()).Do(ctx, Request{
		URL:      server.URL,
		Timeout:  2 * time.Second,
		Detached: true,
	})
	if err != nil {
		t.Fatalf("expected detached call to finish, got %v", err)
	}
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
}

func TestRESTAdapter_RequestErrorsAreBadInput(t *testing.T) {
	adapter := NewRESTAdapter(http.DefaultClient)
	if _, err := adapter.Do(context.Background(), Request{URL: ""}); core.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty url, got %v", err)
	}
	if _, err := adapter.Do(context.Background(), Request{URL: "http://[::1"}); core.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed url, got %v", err)
	}
	var nilAdapter *RESTAdapter
	if _, err := nilAdapter.Do(context.Background(), Request{URL: "http://example.test"}); core.HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for nil adapter, got %v", err)
	}
}

func TestRESTAdapter_BodyLimitKeepsRemoteStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("y", 32)))
	}))
	defer server.Close()

	_, err := NewRESTAdapter(server.Client()).Do(context.Background(), Request{URL: server.URL, MaxResponseBodyBytes: 8})
	if !core.IsTransient(err) || core.RemoteStatusCode(err) != http.StatusOK {
		t.Fatalf("expected transient error carrying status 200, got %v", err)
	}
}
