package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPrompt asks the vision model for a flat comma-separated keyword list.
// The response is consumed verbatim; the reviewer corrects bad output via
// re-analysis rather than the client validating structure.
const DefaultPrompt = "Analyze this image and return exactly 15 short keywords " +
	"separated by commas. At least 10 keywords MUST be concrete, visible objects " +
	"in the image. The remaining keywords may describe moods, colors or abstract " +
	"concepts. Return ONLY the keywords without quotes, no other text."

// Analyzer maps raw image bytes to a comma-separated tag string. It is an
// external, latency-bearing call and may fail; callers treat failures as
// per-item errors, never as batch-fatal.
type Analyzer interface {
	Analyze(ctx context.Context, imageData []byte) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint (LM Studio,
// llama.cpp server, etc.) hosting a vision model.
type Client struct {
	BaseURL    string
	Model      string
	Prompt     string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewClient builds a Client with the given endpoint and model. The timeout
// bounds the whole call; a hung model server surfaces as an analysis failure
// instead of stalling the batch forever.
func NewClient(baseURL, model, prompt string, timeout time.Duration) *Client {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		Prompt:    prompt,
		MaxTokens: 200,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// dataURL wraps raw image bytes as a base64 data URL, the format the chat
// completions image_url content part expects
func dataURL(imageData []byte) string {
	mime := http.DetectContentType(imageData)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imageData)
}

// Analyze sends the image to the vision model and returns its tag string.
// An empty model response is an error: a record must never be persisted
// without tags.
func (c *Client) Analyze(ctx context.Context, imageData []byte) (string, error) {
	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: c.Prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL(imageData)}},
				},
			},
		},
		MaxTokens: c.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis request: %w", err)
	}

	url := c.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("analysis service returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode analysis response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("analysis response contained no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("analysis response was empty")
	}
	return content, nil
}
