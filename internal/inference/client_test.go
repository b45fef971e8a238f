package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("missing or invalid Authorization header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing or invalid Content-Type header")
		}

		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4" {
			t.Errorf("expected model 'gpt-4', got %q", req.Model)
		}
		if req.MaxTokens != 200 {
			t.Errorf("expected max_tokens 200, got %d", req.MaxTokens)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != RoleSystem {
			t.Errorf("expected first role %q, got %q", RoleSystem, req.Messages[0].Role)
		}
		if req.Messages[1].Role != RoleUser || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected user turn: %+v", req.Messages[1])
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token",
		WithModel("gpt-4"), WithMaxTokens(200), WithTemperature(0.7))

	reply, err := client.Complete(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("expected reply 'hi there', got %q", reply)
	}
}

func TestComplete_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hello"}})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", apiErr.Status)
	}
	if apiErr.Message != "rate limited" {
		t.Errorf("expected message 'rate limited', got %q", apiErr.Message)
	}
}

func TestComplete_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hello"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("expected status text message, got %q", apiErr.Message)
	}
}

func TestComplete_ErrorInSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hello"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "model overloaded" {
		t.Errorf("expected message 'model overloaded', got %q", apiErr.Message)
	}
}

func TestComplete_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hello"}})
	if err == nil {
		t.Fatal("expected error for response without choices")
	}
}

func TestComplete_NoTokenOmitsAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header should be absent without a token")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
