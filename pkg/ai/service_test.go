package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
)

func completionJSON(content string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			},
		},
	})
	return string(raw)
}

func newStubServer(t *testing.T, reply func(userContent string) string) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		user := ""
		if len(req.Messages) > 0 {
			user = req.Messages[len(req.Messages)-1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON(reply(user)))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestNewServiceRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewService(""); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestExpand(t *testing.T) {
	srv, requests := newStubServer(t, func(user string) string {
		return "  " + user + ": a widely used thing\n"
	})

	svc, err := NewService("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got, err := svc.Expand(context.Background(), "GPU")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if got != "GPU: a widely used thing" {
		t.Errorf("unexpected expansion %q", got)
	}

	// The session is shared: a second call reuses it against the same stub.
	if _, err := svc.Expand(context.Background(), "HDR"); err != nil {
		t.Fatalf("second expand failed: %v", err)
	}
	if n := atomic.LoadInt32(requests); n != 2 {
		t.Errorf("expected 2 upstream requests, got %d", n)
	}
}

func TestExtract(t *testing.T) {
	srv, _ := newStubServer(t, func(string) string {
		return "```json\n[{\"acronym\":\"GPU\",\"expansion\":\"Graphics Processing Unit\",\"description\":\"renders frames\"}]\n```"
	})

	svc, err := NewService("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	records, err := svc.Extract(context.Background(), "some page text about a GPU")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(records) != 1 || records[0].Acronym != "GPU" || records[0].Expansion != "Graphics Processing Unit" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestExpandUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewService("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if _, err := svc.Expand(context.Background(), "GPU"); err == nil {
		t.Fatal("expected error from upstream failure")
	}
}
