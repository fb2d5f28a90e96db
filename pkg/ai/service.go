// Package ai implements the expansion and extraction collaborators against
// an OpenAI-compatible API. The Service is the code that lives on the far
// side of the resolve.Bridge: it owns the single lazily created model
// session that every request reuses.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const expandSystemPrompt = `You explain technical acronyms and product names.
Given a term, reply with exactly one line of the form "FullName: short explanation".
If the term is not a technology-related acronym or product name, reply with exactly "Not a tech term".`

const extractSystemPrompt = `You extract technical acronyms from text.
Reply with a JSON array only, no prose and no code fences. Each element must be
an object with the keys "acronym", "expansion" and "description".`

// Record is one extracted acronym from the batch extraction path.
type Record struct {
	Acronym     string `json:"acronym"`
	Expansion   string `json:"expansion"`
	Description string `json:"description"`
}

// Option configures a Service.
type Option func(*Service)

// WithModel sets the model used for both expansion and extraction.
func WithModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the service at a custom OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client used by the session.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// Service talks to an OpenAI-compatible chat-completions API. The underlying
// client is created on first use and shared by all subsequent calls.
type Service struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	client *openai.Client
}

// NewService creates a service. An empty apiKey falls back to the
// OPENAI_API_KEY environment variable; an empty baseURL falls back to
// OPENAI_BASE_URL, then the default endpoint.
func NewService(apiKey string, opts ...Option) (*Service, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}
	s := &Service{apiKey: apiKey, model: DefaultModel}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseURL == "" {
		s.baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	return s, nil
}

// session returns the shared client, creating it on first call.
func (s *Service) session() openai.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		opts := []option.RequestOption{option.WithAPIKey(s.apiKey)}
		if s.baseURL != "" {
			opts = append(opts, option.WithBaseURL(s.baseURL))
		}
		if s.httpClient != nil {
			opts = append(opts, option.WithHTTPClient(s.httpClient))
		}
		client := openai.NewClient(opts...)
		s.client = &client
	}
	return *s.client
}

// Expand asks the model for a one-line expansion of term. The caller treats
// the reply as opaque; the literal "Not a tech term" is normalized further
// up the stack.
func (s *Service) Expand(ctx context.Context, term string) (string, error) {
	client := s.session()
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(expandSystemPrompt),
			openai.UserMessage(term),
		},
	})
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", term, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("expand %q: response has no choices", term)
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Extract runs the batch extraction path over arbitrary text, returning
// every acronym the model finds. This path is separate from the hover flow.
func (s *Service) Extract(ctx context.Context, text string) ([]Record, error) {
	client := s.session()
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractSystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("extract: response has no choices")
	}

	var records []Record
	raw := stripFences(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("extract: parsing records: %w", err)
	}
	return records, nil
}

// stripFences tolerates models that wrap JSON in markdown fences despite the
// prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
