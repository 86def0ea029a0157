package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type OpenAIConfig struct {
	Endpoint  string
	Model     string
	APIKeyEnv string
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	endpoint  string
	model     string
	apiKeyEnv string
	client    *http.Client
	logger    *RequestLogger
}

func NewOpenAI(cfg OpenAIConfig, logger *RequestLogger) *OpenAI {
	return &OpenAI{
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		model:     cfg.Model,
		apiKeyEnv: cfg.APIKeyEnv,
		client:    &http.Client{},
		logger:    logger,
	}
}

func (p *OpenAI) Summarize(ctx context.Context, prompt string) (string, error) {
	requestID := newRequestID()

	modelName := p.model
	if modelName == "" {
		modelName = "default"
	}

	payload := map[string]any{
		"model": modelName,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKeyEnv != "" {
		if key := os.Getenv(p.apiKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	p.logger.LogRequest(requestID, "openai", prompt)

	startTime := time.Now()
	httpResp, err := p.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		err = fmt.Errorf("%w: request failed (request_id=%s): %w", ErrGenerationFailed, requestID, err)
		p.logger.LogError(requestID, "openai", err, duration)
		return "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		err = fmt.Errorf("%w: provider error (request_id=%s): %s", ErrGenerationFailed, requestID, httpResp.Status)
		if msg := strings.TrimSpace(string(bodyBytes)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		p.logger.LogError(requestID, "openai", err, duration)
		return "", err
	}

	var responsePayload map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&responsePayload); err != nil {
		return "", fmt.Errorf("%w: decode response (request_id=%s): %w", ErrGenerationFailed, requestID, err)
	}

	content, err := parseResponseContent(responsePayload)
	if err != nil {
		return "", fmt.Errorf("%w: response parse failed (request_id=%s): %w", ErrGenerationFailed, requestID, err)
	}

	p.logger.LogResponse(requestID, "openai", content, duration)
	return content, nil
}

func parseResponseContent(payload map[string]any) (string, error) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", errors.New("no choices in response")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", errors.New("malformed choice in response")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", errors.New("malformed message in response")
	}

	content, _ := message["content"].(string)
	return content, nil
}
