package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the Provider interface using OpenAI's API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Complete sends a message list and returns the model's reply text
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	requestID := ExtractRequestID(ctx)
	userIDStr := ExtractUserID(ctx)

	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: openAIMessages,
	}
	if opts.Temperature != nil {
		req.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONObject {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	if p.logger != nil && p.debugMode {
		messagePreviews := make([]string, 0, len(messages))
		for _, msg := range messages {
			messagePreviews = append(messagePreviews, SanitizePrompt(msg.Content, false))
		}
		p.logger.Debug("llm_api_request",
			zap.String("operation", opts.Operation),
			zap.String("model", p.model),
			zap.Int("message_count", len(openAIMessages)),
			zap.Strings("message_previews", messagePreviews),
			zap.String("user_id", userIDStr),
			zap.String("request_id", requestID),
		)
	}

	startTime := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(startTime)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", opts.Operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("user_id", userIDStr),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to complete %s: %w", opts.Operation, apiErr)
		}
		return "", fmt.Errorf("failed to complete %s: %w", opts.Operation, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", opts.Operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userIDStr),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}
