// Package processor provides concrete processing functions for the request
// queue. The queue itself treats them as opaque; anything returning a result
// or an error fits.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"dispatchq/internal/cache"
	"dispatchq/internal/queue"
)

// ChatRequest is the payload for one queued completion call.
type ChatRequest struct {
	AssistantID string          `json:"assistant_id"`
	Messages    []cache.Message `json:"messages"`
}

type completionRequest struct {
	Model    string          `json:"model"`
	Messages []cache.Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message cache.Message `json:"message"`
	} `json:"choices"`
}

// ChatCompletion wraps a vendor chat-completion endpoint. Identical
// conversations are answered from the response cache without touching the
// vendor; the queue handles retries, so a failed call is returned as-is.
type ChatCompletion struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	cache    cache.ResponseCache // nil disables caching
}

func NewChatCompletion(endpoint, apiKey, model string, responseCache cache.ResponseCache) *ChatCompletion {
	return &ChatCompletion{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		cache:    responseCache,
	}
}

// Process satisfies queue.ProcessFunc[ChatRequest, string].
func (p *ChatCompletion) Process(ctx context.Context, item *queue.Item[ChatRequest]) (string, error) {
	chat := item.Payload
	key := cache.Key(chat.AssistantID, chat.Messages)

	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			log.Printf("response cache get failed for %s: %v", item.ID, err)
		} else if ok {
			return string(cached), nil
		}
	}

	content, err := p.complete(ctx, chat)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, []byte(content)); err != nil {
			log.Printf("response cache set failed for %s: %v", item.ID, err)
		}
	}
	return content, nil
}

func (p *ChatCompletion) complete(ctx context.Context, chat ChatRequest) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:    p.model,
		Messages: chat.Messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion request returned %d: %s", resp.StatusCode, detail)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
