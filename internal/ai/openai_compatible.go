package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAICompatibleClient talks to any endpoint implementing the OpenAI chat completions API.
// One go-openai client is kept per (base URL, key) pair.
type OpenAICompatibleClient struct {
	httpClient *http.Client

	mu      sync.Mutex
	clients map[clientKey]*openai.Client
}

type clientKey struct {
	baseURL string
	apiKey  string
}

func NewOpenAICompatibleClient(timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
		clients:    make(map[clientKey]*openai.Client),
	}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	resp, err := c.client(cfg).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: toOpenAI(messages),
	})
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompatibleClient) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	stream, err := c.client(cfg).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: toOpenAI(messages),
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("llm stream request failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read llm stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text := chunk.Choices[0].Delta.Content
		if text == "" {
			continue
		}

		full.WriteString(text)
		if onChunk != nil {
			if err := onChunk(text); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}

func (c *OpenAICompatibleClient) client(cfg ChatConfig) *openai.Client {
	key := clientKey{baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = key.baseURL
	oc.HTTPClient = c.httpClient
	cl := openai.NewClientWithConfig(oc)
	c.clients[key] = cl
	return cl
}

func toOpenAI(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
