package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/edgebank/assist/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAIProvider streams completions from the Gemini API.
type GenAIProvider struct {
	client *genai.Client
	log    *zap.Logger
}

func NewGenAIProvider(cfg config.Config, log *zap.Logger) (*GenAIProvider, error) {
	if cfg.GenAIAPIKey == "" {
		// Running without a key is allowed in development; calls fail with
		// an upstream error instead of refusing to boot.
		return &GenAIProvider{log: log.Named("llm.genai")}, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.GenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIProvider{client: client, log: log.Named("llm.genai")}, nil
}

func (p *GenAIProvider) Stream(ctx context.Context, req StreamRequest, emit Emit) error {
	if p.client == nil {
		return fmt.Errorf("%w: no API key configured", ErrUpstream)
	}

	contents := make([]*genai.Content, 0, len(req.History))
	for _, message := range req.History {
		contents = append(contents, genai.NewContentFromText(message.Content, toGenAIRole(message.Role)))
	}

	generateConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		generateConfig.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, generateConfig) {
		if err != nil {
			return classifyError(err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	return nil
}

// toGenAIRole maps a prompt role onto the API's typed role. Anything
// unrecognized is sent as the user.
func toGenAIRole(role Role) genai.Role {
	if role == RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "token"):
			return errors.Join(ErrContextLength, err)
		}
	}
	return errors.Join(ErrUpstream, err)
}
