package generate

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pixora-ai/pixora-api/internal/models"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

type Limits struct {
	MaxPromptLength int
	MaxImageBytes   int
}

func LimitsFrom(cfg models.GenerationConfig) Limits {
	l := Limits{MaxPromptLength: cfg.MaxPromptLength, MaxImageBytes: cfg.MaxImageBytes}
	if l.MaxPromptLength <= 0 {
		l.MaxPromptLength = models.DefaultMaxPromptLength
	}
	if l.MaxImageBytes <= 0 {
		l.MaxImageBytes = models.DefaultMaxImageBytes
	}
	return l
}

// BuildPrompt validates a generation request and applies the style prefix.
func BuildPrompt(req *models.GenerateRequest, limits Limits) (*models.ImagePrompt, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, models.NewValidationError("Prompt is required and must be a non-empty string.", nil)
	}
	if utf8.RuneCountInString(req.Prompt) > limits.MaxPromptLength {
		return nil, models.NewValidationError(
			fmt.Sprintf("Prompt must be %d characters or less.", limits.MaxPromptLength), nil)
	}

	out := &models.ImagePrompt{Text: prompt}
	if style := strings.TrimSpace(req.Style); style != "" {
		out.Text = fmt.Sprintf("in %s style: %s", style, prompt)
	}

	if req.Image == nil {
		return out, nil
	}

	encoded := *req.Image
	if encoded == "" || !base64Pattern.MatchString(encoded) {
		return nil, models.NewValidationError("Image must be a valid base64 encoded string.", nil)
	}
	if len(encoded)*3/4 > limits.MaxImageBytes {
		return nil, models.NewValidationError(
			fmt.Sprintf("Image size must be %dMB or less.", limits.MaxImageBytes/(1024*1024)), nil)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.NewValidationError("Image must be a valid base64 encoded string.", err)
	}
	out.Image = data

	return out, nil
}
