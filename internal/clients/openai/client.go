// Package openai is a minimal client for OpenAI-compatible chat completion
// endpoints. It implements the generation contract the turn service consumes:
// one streamed completion per call, with deltas surfaced through a callback.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/platform/logger"
	"github.com/lumachat/luma-backend/internal/services"
)

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ services.Generator = (*Client)(nil)

func NewClient(log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSeconds := 180
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	return &Client{
		log:     log.With("client", "openai"),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Body)
}

// Generate streams a chat completion for the given history. Cancellation mid
// stream comes back as the context error; the caller decides what an aborted
// run means for persistence.
func (c *Client) Generate(ctx context.Context, history []*conversation.Message, onDelta func(delta string)) (services.Completion, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    toChatMessages(history),
		Temperature: 0.7,
		Stream:      true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return services.Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return services.Completion{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Completion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Completion{}, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var full strings.Builder
	model := c.model
	err = streamSSE(resp.Body, func(data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}

		var chunk struct {
			Model   string `json:"model"`
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai stream error: %s", chunk.Error.Message)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			full.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return services.Completion{Aborted: true}, ctx.Err()
		}
		return services.Completion{}, err
	}

	return services.Completion{Text: full.String(), Model: model}, nil
}

func toChatMessages(history []*conversation.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history))
	for _, m := range history {
		role := string(m.Role)
		switch m.Role {
		case conversation.RoleSystem, conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool:
		default:
			role = string(conversation.RoleUser)
		}
		out = append(out, chatMessage{Role: role, Content: m.Content})
	}
	return out
}

// streamSSE reads "data:" lines off an SSE body and hands each event payload
// to onData. Multi-line data fields are joined per the SSE spec.
func streamSSE(r io.Reader, onData func(data string) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		return onData(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
