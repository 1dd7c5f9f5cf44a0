package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", baseURL)
	t.Setenv("OPENAI_MODEL", "test-model")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"model":"test-model","choices":[{"delta":{"content":%q}}]}`+"\n\n", content)
}

func TestGenerateStreamsAndAccumulates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hel"))
		fmt.Fprint(w, sseChunk("lo"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var deltas []string
	got, err := c.Generate(context.Background(), []*conversation.Message{
		{Role: conversation.RoleUser, Content: "hi"},
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Text != "Hello" {
		t.Fatalf("text = %q, want %q", got.Text, "Hello")
	}
	if got.Model != "test-model" {
		t.Fatalf("model = %q", got.Model)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %v", deltas)
	}
}

func TestGenerateSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Generate(context.Background(), []*conversation.Message{
		{Role: conversation.RoleUser, Content: "hi"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error missing status: %v", err)
	}
}

func TestGenerateMapsUnknownRolesToUser(t *testing.T) {
	msgs := toChatMessages([]*conversation.Message{
		{Role: conversation.Role("weird"), Content: "a"},
		{Role: conversation.RoleAssistant, Content: "b"},
	})
	if msgs[0].Role != "user" {
		t.Fatalf("unknown role mapped to %q", msgs[0].Role)
	}
	if msgs[1].Role != "assistant" {
		t.Fatalf("assistant role mapped to %q", msgs[1].Role)
	}
}
