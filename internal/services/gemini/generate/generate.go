// Package generate calls the Gemini image model through the genai SDK.
package generate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/circuitbreaker"
	"github.com/pixora-ai/pixora-api/internal/services/observability"
	"github.com/pixora-ai/pixora-api/internal/services/ratelimit"
	"github.com/pixora-ai/pixora-api/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

const (
	providerName   = "GEMINI"
	inputImageMime = "image/png"
)

var errNoImage = errors.New("model returned no image")

// contentGenerator is the part of genai.Models the service needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type generatorFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// ImageService turns a validated prompt into a base64 encoded image.
type ImageService struct {
	model        string
	apiKey       string
	timeout      time.Duration
	rateLimitRpm int
	limiter      *ratelimit.Limiter
	breaker      circuitbreaker.Breaker
	clients      *clientcache.Cache[contentGenerator]
	newGenerator generatorFactory
}

func NewImageService(cfg models.GenerationConfig, limiter *ratelimit.Limiter, breaker circuitbreaker.Breaker) *ImageService {
	model := cfg.Model
	if model == "" {
		model = models.DefaultGenerationModel
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(models.DefaultGenerationTimeoutMs) * time.Millisecond
	}

	return &ImageService{
		model:        model,
		apiKey:       cfg.APIKey,
		timeout:      timeout,
		rateLimitRpm: cfg.RateLimitRpm,
		limiter:      limiter,
		breaker:      breaker,
		clients:      clientcache.New[contentGenerator](),
		newGenerator: newGenAIGenerator,
	}
}

func newGenAIGenerator(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

// Generate runs one upstream generation for userID. It never touches the ledger.
func (s *ImageService) Generate(ctx context.Context, userID string, prompt *models.ImagePrompt, requestID string) (string, error) {
	if s.apiKey == "" || s.apiKey == "your_api_key_here" {
		return "", models.NewInternalError("API key is not configured.", nil)
	}

	if s.limiter != nil && !s.limiter.Allow(userID, s.rateLimitRpm) {
		return "", models.NewRateLimitError("Too many generation requests. Please slow down.")
	}

	if s.breaker != nil && !s.breaker.Allow(ctx) {
		fiberlog.Warnf("[%s] Gemini circuit open, rejecting generation", requestID)
		return "", models.NewCircuitBreakerError("image generation")
	}

	generator, err := s.clients.GetOrCreate(clientcache.Key(s.apiKey), func() (contentGenerator, error) {
		return s.newGenerator(context.WithoutCancel(ctx), s.apiKey)
	})
	if err != nil {
		return "", models.NewProviderError(providerName, "An unexpected error occurred.", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fiberlog.Infof("[%s] Generating image with %s", requestID, s.model)
	start := time.Now()
	resp, err := generator.GenerateContent(callCtx, s.model, buildContents(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	duration := time.Since(start)

	if err != nil {
		appErr, upstreamFault := s.mapError(callCtx, err)
		s.recordOutcome(ctx, upstreamFault)
		observability.GenerationDuration.WithLabelValues(strconv.Itoa(appErr.GetStatusCode())).Observe(duration.Seconds())
		fiberlog.Errorf("[%s] Gemini request failed after %v: %v", requestID, duration, err)
		return "", appErr
	}
	s.recordOutcome(ctx, false)

	image, err := extractImage(resp)
	observability.GenerationDuration.WithLabelValues(statusLabel(err)).Observe(duration.Seconds())
	if err != nil {
		fiberlog.Warnf("[%s] Gemini returned no image after %v: %v", requestID, duration, err)
		return "", err
	}

	fiberlog.Infof("[%s] Image generated in %v", requestID, duration)
	return base64.StdEncoding.EncodeToString(image), nil
}

func buildContents(prompt *models.ImagePrompt) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(prompt.Text)}
	if len(prompt.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(prompt.Image, inputImageMime))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func extractImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, models.NewProviderError(providerName, "No response generated from the model.", errNoImage)
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, models.NewProviderError(providerName, "Empty response from the model.", errNoImage)
	}

	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, models.NewProviderError(providerName, "No image was generated. Try a different prompt.", errNoImage)
}

// mapError converts an SDK error into the HTTP facing error and reports whether the
// failure should count against the circuit breaker.
func (s *ImageService) mapError(ctx context.Context, err error) (*models.AppError, bool) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timeoutErr := models.NewTimeoutError("image generation", err)
		timeoutErr.Message = "Request timed out. Please try again."
		return timeoutErr, true
	}

	if code, message, ok := apiErrorDetails(err); ok {
		switch {
		case code == http.StatusTooManyRequests:
			return models.NewRateLimitError("Rate limit exceeded. Please try again later."), false
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return models.NewProviderError(providerName, "Invalid API key.", err), false
		case code >= http.StatusInternalServerError:
			return models.NewProviderError(providerName, upstreamMessage(message, code), err), true
		default:
			return models.NewProviderError(providerName, upstreamMessage(message, code), err), false
		}
	}

	return models.NewProviderError(providerName, "An unexpected error occurred.", err), true
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}

func upstreamMessage(message string, code int) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("API error: %d", code)
}

func (s *ImageService) recordOutcome(ctx context.Context, upstreamFault bool) {
	if s.breaker == nil {
		return
	}
	if upstreamFault {
		s.breaker.RecordFailure(context.WithoutCancel(ctx))
		return
	}
	s.breaker.RecordSuccess(context.WithoutCancel(ctx))
}

func statusLabel(err error) string {
	if err == nil {
		return strconv.Itoa(http.StatusOK)
	}
	return strconv.Itoa(models.SanitizeError(err).GetStatusCode())
}
