package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiClient generates replies through Google GenAI.
type GeminiClient struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGeminiClient builds a Gemini-backed generator. model defaults to
// "gemini-2.5-flash".
func NewGeminiClient(ctx context.Context, apiKey, model string, lg zerolog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  model,
		log:    lg.With().Str("component", "llm").Str("provider", "gemini").Logger(),
	}, nil
}

// GenerateReply produces sanitized reply text for a post. The shared forum
// persona travels as the system instruction; the post goes in the user turn.
func (c *GeminiClient) GenerateReply(ctx context.Context, content, title string) (string, error) {
	var user string
	if title != "" {
		user = fmt.Sprintf("帖子標題：%s\n帖子內容：%s\n\n請生成回覆：", title, content)
	} else {
		user = fmt.Sprintf("帖子內容：%s\n\n請生成回覆：", content)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 ||
		result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}

	reply := Sanitize(result.Candidates[0].Content.Parts[0].Text)
	if reply == "" {
		return "", errors.New("gemini: empty reply after sanitization")
	}
	return reply, nil
}
