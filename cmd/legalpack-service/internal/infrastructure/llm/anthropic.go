package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
)

const anthropicVersion = "2023-06-01"

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnthropicClient calls the Anthropic messages API with retry and a
// circuit breaker. Analysis runs at temperature zero, so repeated runs
// over the same pack produce stable output.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ biz.CompletionClient = (*AnthropicClient)(nil)

// NewAnthropicClient builds the client from config.
func NewAnthropicClient(cfg *conf.Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}

	settings := gobreaker.Settings{
		Name:        "anthropic",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: cfg.LLM.Timeout},
		baseURL:    cfg.LLM.BaseURL,
		apiKey:     cfg.LLM.APIKey,
		model:      cfg.LLM.Model,
		maxRetries: cfg.LLM.MaxRetries,
		retryDelay: cfg.LLM.RetryDelay,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}, nil
}

// Complete sends one completion request and returns the response text.
func (c *AnthropicClient) Complete(ctx context.Context, req *biz.CompletionRequest) (string, error) {
	body := messagesRequest{
		Model:     c.model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Messages: []messagesMessage{
			{Role: "user", Content: req.Prompt},
		},
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.callWithRetry(ctx, reqBody)
	if err != nil {
		return "", err
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic: %s: %s", msgResp.Error.Type, msgResp.Error.Message)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response content")
	}

	c.logger.Debug("completion finished",
		zap.String("stop_reason", msgResp.StopReason),
		zap.Int("input_tokens", msgResp.Usage.InputTokens),
		zap.Int("output_tokens", msgResp.Usage.OutputTokens))

	return msgResp.Content[0].Text, nil
}

func (c *AnthropicClient) callWithRetry(ctx context.Context, reqBody []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doHTTPCall(ctx, reqBody)
		})
		if err == nil {
			return result.([]byte), nil
		}
		lastErr = err

		if !c.shouldRetry(err) {
			break
		}
		c.logger.Warn("completion call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *AnthropicClient) doHTTPCall(ctx context.Context, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *AnthropicClient) shouldRetry(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return true
}
