package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stratplan/companion/internal/config"
)

// ErrNoChoices is returned when the completion carries no message.
var ErrNoChoices = errors.New("no choices in response")

// GroqClient handles communication with Groq API
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	log        *slog.Logger
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat asks the model for a JSON object instead of prose.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TranscriptAnalysis is the structured summary of a meeting transcript.
type TranscriptAnalysis struct {
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
}

const analysisPrompt = `Você é um consultor de planejamento estratégico.
Recebe a transcrição de uma reunião e responde SOMENTE com JSON no formato
{"summary": "...", "insights": ["...", "..."]}.
O resumo tem no máximo 5 frases. Cada insight é uma ação ou decisão concreta.`

// NewGroqClient creates a new Groq API client
func NewGroqClient(cfg *config.GroqConfig, log *slog.Logger) *GroqClient {
	if log == nil {
		log = slog.Default()
	}
	return &GroqClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		log:     log.With("component", "groq"),
	}
}

// AnalyzeTranscript asks the model for a summary and action insights.
func (c *GroqClient) AnalyzeTranscript(ctx context.Context, transcript string) (*TranscriptAnalysis, error) {
	content, err := c.complete(ctx, ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: analysisPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0.3,
		MaxTokens:      1024,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var analysis TranscriptAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		// Some models ignore response_format; keep the prose as the summary.
		c.log.Warn("Groq returned non-JSON analysis", "error", err)
		return &TranscriptAnalysis{Summary: strings.TrimSpace(content)}, nil
	}
	return &analysis, nil
}

func (c *GroqClient) complete(ctx context.Context, reqBody ChatCompletionRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrNoChoices
	}

	c.log.Debug("Groq completion", "model", chatResp.Model,
		"total_tokens", chatResp.Usage.TotalTokens)

	return chatResp.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}
