package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hanavoice/hana/pkg/errorsx"
)

// Completer is a single prompt-in/text-out completion call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient calls the chat-completions endpoint. Low temperature biases
// the extraction toward determinism.
type OpenAIClient struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Client      *http.Client
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     "https://api.openai.com/v1",
		Temperature: 0.3,
		Client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OpenAIClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"temperature": c.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonExtractionGenerate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonExtractionGenerate)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client().Do(req)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonExtractionGenerate)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", errorsx.Wrap(errors.New(string(raw)), errorsx.ReasonExtractionGenerate)
	}
	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonExtractionGenerate)
	}
	choices, _ := parsed["choices"].([]any)
	if len(choices) == 0 {
		return "", errorsx.Wrap(errors.New("no choices"), errorsx.ReasonExtractionGenerate)
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	content, _ := msg["content"].(string)
	return content, nil
}
