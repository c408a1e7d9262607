// Package llm is a chat-completions client for the OpenRouter API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const baseURL = "https://openrouter.ai/api/v1"

// Client calls an OpenRouter-compatible chat completions endpoint.
type Client struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewClient creates a Client for the given model.
func NewClient(apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, model: model, client: httpClient, baseURL: baseURL}
}

// NewClientWithBaseURL creates a Client with a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model string, httpClient *http.Client, url string) *Client {
	c := NewClient(apiKey, model, httpClient)
	c.baseURL = url
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the whole
// completion, trimmed.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("llm: reading response: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteStream sends prompt with streaming enabled and invokes onChunk for
// each content delta as it arrives. Returns the accumulated completion.
func (c *Client) CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	body, err := c.post(ctx, prompt, true)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			if onChunk != nil {
				onChunk(text)
			}
			sb.WriteString(text)
		}
	}
	if err := scanner.Err(); err != nil {
		return sb.String(), fmt.Errorf("llm: reading stream: %w", err)
	}

	return sb.String(), nil
}

func (c *Client) post(ctx context.Context, prompt string, stream bool) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: calling API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}
