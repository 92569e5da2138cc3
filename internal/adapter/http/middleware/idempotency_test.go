package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type idempotencyStoreStub struct {
	existing []byte
	updated  []byte
}

func (s *idempotencyStoreStub) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if s.existing != nil {
		return true, s.existing, nil
	}
	return false, nil, nil
}

func (s *idempotencyStoreStub) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updated = response
	return nil
}

func TestIdempotencyReplayReturnsCachedResponse(t *testing.T) {
	store := &idempotencyStoreStub{existing: []byte(`{"amount":"100"}`)}
	mw := NewIdempotencyMiddleware(store)

	handlerCalled := false
	wrapped := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/withdrawals", strings.NewReader("{}"))
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if handlerCalled {
		t.Fatal("expected cached replay to skip the handler")
	}
	if rec.Header().Get("X-Idempotency-Replay") != "true" {
		t.Fatal("expected replay header")
	}
	if rec.Body.String() != `{"amount":"100"}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestIdempotencyStoresSuccessfulResponse(t *testing.T) {
	store := &idempotencyStoreStub{}
	mw := NewIdempotencyMiddleware(store)

	wrapped := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/deposits", strings.NewReader("{}"))
	req.Header.Set(IdempotencyKeyHeader, "key-2")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if string(store.updated) != `{"ok":true}` {
		t.Fatalf("expected response to be stored, got %q", store.updated)
	}
}

func TestIdempotencySkipsRequestsWithoutKey(t *testing.T) {
	store := &idempotencyStoreStub{existing: []byte("should not matter")}
	mw := NewIdempotencyMiddleware(store)

	handlerCalled := false
	wrapped := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/deposits", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("expected handler to run when no idempotency key is present")
	}
}
