package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// ChatGPT represents a client for the OpenAI chat completions API
type ChatGPT struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// Option configures a ChatGPT client
type Option func(*ChatGPT)

// WithURL points the client at another endpoint
func WithURL(url string) Option { return func(c *ChatGPT) { c.apiURL = url } }

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option { return func(c *ChatGPT) { c.client = hc } }

// New creates a new ChatGPT client
func New(apiKey string, opts ...Option) (*ChatGPT, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	c := &ChatGPT{
		apiKey:      apiKey,
		apiURL:      defaultAPIURL,
		model:       "gpt-3.5-turbo",
		maxTokens:   60,
		temperature: 0.8,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Message represents a message in the ChatGPT conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the ChatGPT API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the ChatGPT API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one system and user prompt and returns the trimmed reply
func (c *ChatGPT) Complete(ctx context.Context, system, prompt string) (string, error) {
	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no response choices returned")
	}

	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}

var fallbackLines = []string{
	"Small steady steps every day add up to a big result.",
	"Discipline beats motivation. Open the book and begin.",
	"Every page you read today is one less worry on exam day.",
	"Focus on progress, not perfection.",
	"You have done hard things before. Today is one more.",
	"Consistency is the real secret. Show up again today.",
	"The best time to study was yesterday. The next best time is now.",
}

// Motivator produces the motivational line of the morning greeting. It asks
// the model when a client is configured and falls back to a fixed rotation.
type Motivator struct {
	client *ChatGPT

	mu   sync.Mutex
	next int
}

// NewMotivator creates a Motivator; client may be nil
func NewMotivator(client *ChatGPT) *Motivator {
	return &Motivator{client: client}
}

// Line returns one motivational sentence. It never fails.
func (m *Motivator) Line(ctx context.Context, studentName string) string {
	if m.client != nil {
		line, err := m.client.Complete(ctx,
			"You write one short, warm motivational sentence for a student preparing for a dental licensing exam.",
			fmt.Sprintf("Write one motivational sentence for %s starting a long study day. No quotes, no emojis.", studentName))
		if err == nil {
			return line
		}
	}
	return m.Fallback()
}

// Fallback returns the next line of the fixed rotation
func (m *Motivator) Fallback() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := fallbackLines[m.next%len(fallbackLines)]
	m.next++
	return line
}
