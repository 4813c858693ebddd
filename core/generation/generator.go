package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/compumax/graphrag/helper"
	"github.com/compumax/graphrag/model"
)

// SystemPromptAnswer steers free text answers over the assembled context.
const SystemPromptAnswer = `You are a helpful clinical assistant.
Use the provided context to answer the user query accurately.
If the context is insufficient, state that clearly.
Maintain patient privacy and professional tone.`

// SystemPromptSQL steers structured query synthesis from query history context.
const SystemPromptSQL = `You are a SQL assistant.
Use the provided query history and schema context to write one SQL query
answering the user request. Reuse tables and join patterns from the context.
Return only the SQL query.`

// Generator is the boundary to the downstream completion service.
// The assembled context and the original query are passed verbatim; a
// failure is surfaced as a generation error without retry, regeneration is
// the caller's decision.
type Generator interface {
	Complete(ctx context.Context, systemPrompt string, contextText string, userQuery string) (string, error)
}

// Config holds the connection parameters of an OpenAI compatible chat
// endpoint, local servers included.
type Config struct {
	BaseURL     string
	Model       string
	Token       string
	Temperature float64
}

// NewConfig reads the generation configuration from the environment,
// loading a .env file if present.
func NewConfig() (*Config, error) {
	// Missing .env is fine, envs may be set by the environment
	_ = godotenv.Load()

	config := &Config{
		BaseURL:     os.Getenv("GENERATION_BASE_URL"),
		Model:       os.Getenv("GENERATION_MODEL"),
		Token:       os.Getenv("GENERATION_TOKEN"),
		Temperature: 0.2,
	}
	if config.BaseURL == "" {
		return nil, helper.NewError("reading generation configuration", fmt.Errorf("GENERATION_BASE_URL is not set"))
	}
	if config.Model == "" {
		return nil, helper.NewError("reading generation configuration", fmt.Errorf("GENERATION_MODEL is not set"))
	}
	if config.Token == "" {
		// local OpenAI compatible services accept any token
		config.Token = "none"
	}

	return config, nil
}

// LLMGenerator completes prompts against an OpenAI compatible chat API.
type LLMGenerator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// NewLLMGenerator creates a generator for the configured chat endpoint.
func NewLLMGenerator(config *Config, logger *slog.Logger) (*LLMGenerator, error) {
	if config == nil {
		return nil, helper.NewError("generation configuration validation", fmt.Errorf("configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(config.Token),
		openai.WithModel(config.Model),
	)
	if err != nil {
		return nil, helper.NewError("create generation client", err)
	}

	return &LLMGenerator{
		client:      client,
		temperature: config.Temperature,
		logger:      logger,
	}, nil
}

// Complete sends the system prompt, assembled context and user query to the
// chat endpoint and returns the completion text.
func (g *LLMGenerator) Complete(ctx context.Context, systemPrompt string, contextText string, userQuery string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(fmt.Sprintf("Context:\n%s\n\nUser Query: %s", contextText, userQuery)),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", &model.GenerationError{Err: err}
	}
	if len(response.Choices) == 0 {
		return "", &model.GenerationError{Err: fmt.Errorf("no completion choices returned")}
	}

	answer := strings.TrimSpace(response.Choices[0].Content)

	g.logger.Debug("Generated completion", slog.Int("contextChars", len(contextText)), slog.Int("answerChars", len(answer)))

	return answer, nil
}
