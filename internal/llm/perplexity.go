package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// DefaultPerplexityURL is the chat-completions endpoint used when no
// override is configured.
const DefaultPerplexityURL = "https://api.perplexity.ai/chat/completions"

// systemPrompt steers the model toward short, colloquial, Hong Kong
// forum-register replies and away from assistant-sounding phrasing.
const systemPrompt = "你係一個住喺香港嘅普通用戶，活躍於本地討論區。你嘅目標係根據帖子內容俾回覆，或者引起討論。\n" +
	"規則：\n" +
	"1. 語氣自然、口語化，用常見嘅討論區俚語或語句（如：推、真的、同意、正、抵）。唔好提及『原PO』等稱呼，直接針對內容回覆。\n" +
	"2. 你本身就住喺香港，回覆時要好似一般香港街坊咁自然傾計。絕對唔好出現『香港那邊』、『你們香港』、『你們那裡』等好似局外人嘅表達方式。\n" +
	"3. 避免使用『身為一個 AI』、『以下是我的建議』、『根據搜尋結果』等 AI 特徵明確嘅語句。除非用戶直接問你係咪 AI，否則唔好透露。\n" +
	"4. 回覆唔好太長，通常 1-2 句就夠，除非原帖需要詳細討論。\n" +
	"5. 有時候可以帶一啲主觀情緒，但保持禮貌友善。\n" +
	"6. 唔好用太完美嘅排版或者條列式回覆。標點符號隨意啲，句子結尾可以唔使句號，偶爾用換行代替逗號。\n" +
	"7. 如果帖子內容好短（如 'pls adv'、'too bad'），你要結合帖子標題嚟理解用戶想問乜或者討論乜，然後俾有意義嘅回覆。\n" +
	"8. 'pls adv' 通常係請求建議嘅意思，請根據標題內容俾實質性嘅建議或睇法。\n" +
	"9. 可以用繁體中文書面語或者廣東話口語，視乎帖子嘅風格同語氣嚟配合。"

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// PerplexityClient generates replies through the Perplexity
// chat-completions API.
type PerplexityClient struct {
	// BaseURL may be overridden for tests or proxies.
	BaseURL string

	apiKey string
	model  string
	httpc  *retryablehttp.Client
	log    zerolog.Logger
}

// NewPerplexityClient builds a client. model defaults to "sonar". The
// underlying retryablehttp client runs with RetryMax 0: a failed generation
// skips the post, and the next scheduled run is the retry.
func NewPerplexityClient(apiKey, model string, lg zerolog.Logger) *PerplexityClient {
	if model == "" {
		model = "sonar"
	}
	httpc := retryablehttp.NewClient()
	httpc.RetryMax = 0
	httpc.Logger = nil

	return &PerplexityClient{
		BaseURL: DefaultPerplexityURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   httpc,
		log:     lg.With().Str("component", "llm").Str("provider", "perplexity").Logger(),
	}
}

// GenerateReply produces sanitized reply text for a post. Short contents
// lean on the title for meaning, so the title travels in the user message
// whenever present.
func (c *PerplexityClient) GenerateReply(ctx context.Context, content, title string) (string, error) {
	var user string
	if title != "" {
		user = fmt.Sprintf("帖子標題：%s\n帖子內容：%s\n\n請生成回覆：", title, content)
	} else {
		user = fmt.Sprintf("帖子內容：%s\n\n請生成回覆：", content)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		MaxTokens:   200,
		Temperature: 0.7,
		TopP:        0.9,
		Stream:      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Bytes("body", snippet).Msg("completion rejected")
		return "", fmt.Errorf("completion: unexpected status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion: no choices in response")
	}

	reply := Sanitize(out.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("completion: empty reply after sanitization")
	}
	return reply, nil
}
