package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// LLM grades answers through an OpenAI-compatible chat API. A failed call is
// treated as an unavailable upstream: the heuristic fallback grades instead
// and the session is never faulted.
type LLM struct {
	api      *openai.Client
	model    string
	fallback Heuristic
	log      zerolog.Logger
}

// NewLLM creates an LLM grader. baseURL may be empty for the default API
// endpoint.
func NewLLM(baseURL, apiKey, model string, log zerolog.Logger) *LLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLM{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
		log:   log.With().Str("component", "grader").Logger(),
	}
}

const systemPrompt = `You are grading one interview answer. Respond with a JSON object:
{"quality": <0-100 integer>, "semantic_match": <0-100 integer>, "feedback": "<one sentence>"}
Quality reflects correctness, depth and clarity relative to the question.`

// Grade implements Grader.
func (g *LLM) Grade(ctx context.Context, question, answer string) (*Result, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("Remote grader unavailable, using heuristic")
		return g.fallback.Grade(ctx, question, answer)
	}
	if len(resp.Choices) == 0 {
		g.log.Warn().Msg("Remote grader returned no choices, using heuristic")
		return g.fallback.Grade(ctx, question, answer)
	}

	var result Result
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		g.log.Warn().Err(err).Str("content", content).Msg("Ungradeable response, using heuristic")
		return g.fallback.Grade(ctx, question, answer)
	}

	result.WordCount = len(strings.Fields(answer))
	result.Quality = clamp100(result.Quality)
	result.SemanticMatch = clamp100(result.SemanticMatch)
	return &result, nil
}

func clamp100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
