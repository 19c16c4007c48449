package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/karanuppal/halo/internal/domain"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures OpenAIExtractor.
type OpenAIConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint. Tests point it at httptest.
	BaseURL string

	HTTPClient *http.Client
	MaxRetries int
	Logger     *slog.Logger
}

// OpenAIExtractor extracts intents with a JSON-mode chat completion and
// validates the reply against Schema.
type OpenAIExtractor struct {
	client openai.Client
	model  string
	schema *Schema
	logger *slog.Logger
}

// NewOpenAIExtractor creates an extractor. An API key is required.
func NewOpenAIExtractor(cfg OpenAIConfig) (*OpenAIExtractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai extractor: API key is required")
	}
	schema, err := NewSchema()
	if err != nil {
		return nil, fmt.Errorf("openai extractor: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIExtractor{
		client: openai.NewClient(opts...),
		model:  model,
		schema: schema,
		logger: logger,
	}, nil
}

type promptInput struct {
	Command              string            `json:"command"`
	ClarificationAnswers map[string]string `json:"clarification_answers"`
}

// Extract asks the model for an intent. Any transport, decoding or
// validation failure yields domain.UnsupportedIntent.
func (e *OpenAIExtractor) Extract(ctx context.Context, req Request) domain.Intent {
	in, err := e.extract(ctx, req)
	if err != nil {
		e.logger.Warn("intent extraction failed", "household_id", req.HouseholdID, "error", err)
		return domain.UnsupportedIntent(err.Error())
	}
	return in
}

func (e *OpenAIExtractor) extract(ctx context.Context, req Request) (domain.Intent, error) {
	answers := req.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	user, err := json.Marshal(promptInput{Command: req.Text, ClarificationAnswers: answers})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("encode prompt: %w", err)
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(user)),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Intent{}, errors.New("chat completion: no choices")
	}
	return e.schema.Validate([]byte(resp.Choices[0].Message.Content))
}
