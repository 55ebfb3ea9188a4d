package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aaasdream/ai-studio-like/internal/config"
	"github.com/aaasdream/ai-studio-like/internal/domain"
	"github.com/aaasdream/ai-studio-like/internal/generation"
	"github.com/aaasdream/ai-studio-like/internal/redact"
)

// Client implements generation.Generator and generation.CacheManager
// using the Gemini API.
type Client struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// Compile-time checks that Client satisfies the boundary interfaces.
var (
	_ generation.Generator    = (*Client)(nil)
	_ generation.CacheManager = (*Client)(nil)
)

// NewClient creates a Gemini-backed client from the LLM configuration.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Client{
		logger: logger.With("component", "gemini_client", "model", cfg.ModelName),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateAnswer implements generation.Generator. It issues a single
// generate-content call; retry decisions belong to the scheduler.
func (c *Client) GenerateAnswer(ctx context.Context, prompt string, cacheID string) (*generation.Answer, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", generation.ErrInvalidResponse)
	}

	var genCfg *genai.GenerateContentConfig
	if cacheID != "" {
		genCfg = &genai.GenerateContentConfig{CachedContent: cacheID}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		c.logger.WarnContext(ctx, "generate call failed",
			"error", redact.Error(err), "cache_attached", cacheID != "")
		return nil, classifyRemoteError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, candidate.FinishReason)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if text == "" {
		return nil, fmt.Errorf("%w: no text parts in response", generation.ErrInvalidResponse)
	}

	answer := &generation.Answer{Text: text}
	if resp.UsageMetadata != nil {
		answer.Usage = domain.TokenUsage{
			PromptTokens: int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return answer, nil
}

// CreateCache implements generation.CacheManager.
func (c *Client) CreateCache(ctx context.Context, content string, ttl time.Duration, systemPreamble string) (*domain.CacheHandle, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", generation.ErrCacheContentTooSmall)
	}

	createCfg := &genai.CreateCachedContentConfig{
		Contents: genai.Text(content),
		TTL:      ttl,
	}
	if systemPreamble != "" {
		createCfg.SystemInstruction = genai.NewContentFromText(systemPreamble, genai.RoleUser)
	}

	cached, err := c.client.Caches.Create(ctx, c.model, createCfg)
	if err != nil {
		if isTooSmallError(err) {
			return nil, fmt.Errorf("%w: %v", generation.ErrCacheContentTooSmall, err)
		}
		c.logger.WarnContext(ctx, "cache creation failed", "error", redact.Error(err))
		return nil, classifyRemoteError(err)
	}

	handle := &domain.CacheHandle{
		ID:        cached.Name,
		CreatedAt: time.Now().UTC(),
		TTL:       ttl,
	}
	if !cached.CreateTime.IsZero() {
		handle.CreatedAt = cached.CreateTime
	}
	if cached.UsageMetadata != nil {
		handle.TokenCount = cached.UsageMetadata.TotalTokenCount
	}

	c.logger.InfoContext(ctx, "cached content created",
		"cache_id", handle.ID, "token_count", handle.TokenCount, "ttl", ttl)
	return handle, nil
}

// DeleteCache implements generation.CacheManager. A missing resource maps
// to ErrCacheNotFound so callers can treat it as a non-fatal outcome.
func (c *Client) DeleteCache(ctx context.Context, handleID string) error {
	if handleID == "" {
		return fmt.Errorf("%w: empty handle", generation.ErrCacheNotFound)
	}

	if _, err := c.client.Caches.Delete(ctx, handleID, nil); err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusForbidden) {
			return fmt.Errorf("%w: %s", generation.ErrCacheNotFound, handleID)
		}
		return classifyRemoteError(err)
	}
	return nil
}

// classifyRemoteError maps an SDK error onto the generation error
// taxonomy. Overload and server-side failures are transient; other coded
// failures are permanent. Errors without an API code (network failures)
// are assumed transient.
func classifyRemoteError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		default:
			return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
	}
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}

// isTooSmallError detects the provider's rejection of content below the
// minimum cacheable size.
func isTooSmallError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "too small") || strings.Contains(msg, "min_total_token_count")
}
