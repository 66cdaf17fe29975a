package httpexec_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elwyn-b/pgqueue/internal/domain"
	"github.com/elwyn-b/pgqueue/internal/worker/httpexec"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecute_SuccessfulResponse_ReturnsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "value" {
			t.Errorf("missing X-Custom header")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]any{
		"url":     srv.URL,
		"method":  "POST",
		"headers": map[string]string{"X-Custom": "value"},
	})
	task := &domain.Task{ID: "task-1", Name: "webhook", Payload: payload}

	e := httpexec.NewExecutor(testLogger())
	result, err := e.Execute(t.Context(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded["status_code"].(float64) != http.StatusOK {
		t.Errorf("status_code = %v, want 200", decoded["status_code"])
	}
}

func TestExecute_NonSuccessStatus_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]any{"url": srv.URL})
	task := &domain.Task{ID: "task-1", Payload: payload}

	e := httpexec.NewExecutor(testLogger())
	_, err := e.Execute(t.Context(), task)
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestExecute_MissingURL_ReturnsError(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{})
	task := &domain.Task{ID: "task-1", Payload: payload}

	e := httpexec.NewExecutor(testLogger())
	_, err := e.Execute(t.Context(), task)
	if err == nil {
		t.Fatal("expected an error for a missing url")
	}
}

func TestExecute_DefaultsToPOST(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]any{"url": srv.URL})
	task := &domain.Task{ID: "task-1", Payload: payload}

	e := httpexec.NewExecutor(testLogger())
	if _, err := e.Execute(t.Context(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
}
