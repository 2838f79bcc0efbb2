// Package agent talks to the external reasoning service that supplies text
// embeddings, candidate rankings, and contact anonymization.
//
// The service speaks an OpenAI-style chat-completions protocol but its
// answers carry no schema guarantee, so every response goes through a
// multi-strategy parse that degrades to an empty value instead of failing
// the caller. All workflow code depends only on the method set below, which
// never returns an error for a malformed answer.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/HarshS99/lostandfound/internal/model"
)

const defaultTimeout = 30 * time.Second

const (
	embedPrompt   = "You are EmbedAgent. Return a JSON array of floats ONLY for embedding, no explanation."
	matcherPrompt = "You are MatcherAgent. Return a JSON array of matching items with fields: " +
		"id, title, description, score, reasons, owner_contact. NO extra text."
	privacyPrompt = "You are PrivacyAgent. Take a contact string and return an anonymized version ONLY."
)

// Client calls the reasoning service.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a reasoning-service client. The timeout bounds every
// individual request; a timed-out call is treated like any other failed one.
func NewClient(baseURL, apiKey, modelName string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Embed requests a semantic embedding for a report's title and description.
// A response that cannot be shaped into numbers degrades to an empty vector;
// a record without an embedding is still useful for fingerprint matching.
func (c *Client) Embed(ctx context.Context, title, description string) []float64 {
	prompt := fmt.Sprintf("Generate embedding for title: %s, description: %s", title, description)
	content, err := c.complete(ctx, embedPrompt, prompt)
	if err != nil {
		c.logger.Warn("embedding request failed", "error", err)
		return nil
	}
	return parseFloats(content)
}

// RankCandidates asks the service for a ranked list of match candidates for
// the given report context. Unparseable responses yield an empty list.
func (c *Client) RankCandidates(ctx context.Context, itemType, fingerprint string, embedding []float64) []model.Candidate {
	prompt := fmt.Sprintf("Find matches for type %s, fingerprint %s, embedding %v", itemType, fingerprint, embedding)
	content, err := c.complete(ctx, matcherPrompt, prompt)
	if err != nil {
		c.logger.Warn("candidate ranking request failed", "error", err)
		return nil
	}
	return parseCandidates(content)
}

// MaskContact requests an anonymized version of a contact string. This is
// best-effort: whatever text comes back, including nothing, is the mask.
func (c *Client) MaskContact(ctx context.Context, contact string) string {
	content, err := c.complete(ctx, privacyPrompt, "Anonymize contact: "+contact)
	if err != nil {
		c.logger.Warn("anonymization request failed", "error", err)
		return ""
	}
	return strings.TrimSpace(content)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete runs one system+user exchange and returns the raw answer text.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
