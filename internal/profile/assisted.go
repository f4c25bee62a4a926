package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/pkg/anthropic"
)

// maxAssistedTextLen caps the page text sent to the model.
const maxAssistedTextLen = 3000

const assistedSystemPrompt = "あなたは日本の企業・事業内容を分析する専門家です。" +
	"与えられた情報から正確に業種やカテゴリを判定してください。必ずJSONのみで回答してください。"

// AssistedExtractor builds profiles by asking a Claude model to classify the
// page text. The model's hit-count style confidences (1-10 per label, 0-100
// overall) feed the assisted scoring weights.
type AssistedExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAssistedExtractor creates an AssistedExtractor using the given client
// and model ID.
func NewAssistedExtractor(client anthropic.Client, modelID string, maxTokens int64) *AssistedExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AssistedExtractor{client: client, model: modelID, maxTokens: maxTokens}
}

// Strategy identifies this extractor on analysis runs.
func (e *AssistedExtractor) Strategy() string { return model.StrategyAssisted }

// assistedResponse is the JSON shape requested from the model.
type assistedResponse struct {
	Title               string              `json:"title"`
	BusinessTypes       []model.ScoredLabel `json:"business_types"`
	DetectedCategories  []model.ScoredLabel `json:"detected_categories"`
	Keywords            []string            `json:"keywords"`
	SuggestedPrefecture string              `json:"suggested_prefecture"`
	Confidence          int                 `json:"confidence"`
}

// Extract sends the page text to the model and parses the returned profile.
func (e *AssistedExtractor) Extract(ctx context.Context, page *model.PageContent) (*model.BusinessProfile, error) {
	temp := 0.3
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      assistedSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(page)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "profile: assisted extraction")
	}
	resp.Usage.LogUsage(e.model, "profile_extraction")

	var parsed assistedResponse
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &parsed); err != nil {
		return nil, eris.Wrap(err, "profile: parse model response")
	}

	prof := &model.BusinessProfile{
		URL:                 page.URL,
		Title:               parsed.Title,
		BusinessTypes:       parsed.BusinessTypes,
		DetectedCategories:  parsed.DetectedCategories,
		Keywords:            parsed.Keywords,
		SuggestedPrefecture: parsed.SuggestedPrefecture,
		Confidence:          clampConfidence(parsed.Confidence),
	}
	if prof.Title == "" {
		prof.Title = page.Title
	}
	if len(prof.Keywords) > maxKeywords {
		prof.Keywords = prof.Keywords[:maxKeywords]
	}

	zap.L().Info("profile: assisted extraction complete",
		zap.String("url", page.URL),
		zap.Int("business_types", len(prof.BusinessTypes)),
		zap.Int("categories", len(prof.DetectedCategories)),
		zap.Int("confidence", prof.Confidence),
	)

	return prof, nil
}

// buildPrompt renders the classification prompt for a page, truncating the
// body to keep request size bounded.
func buildPrompt(page *model.PageContent) string {
	body := page.Body
	if runes := []rune(body); len(runes) > maxAssistedTextLen {
		body = string(runes[:maxAssistedTextLen])
	}

	var b strings.Builder
	b.WriteString("以下のWebページの内容を分析し、事業プロファイルをJSONで出力してください。\n\n")
	fmt.Fprintf(&b, "タイトル: %s\n", page.Title)
	fmt.Fprintf(&b, "説明: %s\n", page.Description)
	fmt.Fprintf(&b, "見出し: %s\n", strings.Join(page.Headings, ", "))
	fmt.Fprintf(&b, "本文: %s\n\n", body)
	b.WriteString(`出力形式:
{
  "title": "企業名または事業名",
  "business_types": [{"label": "業種名", "confidence": 1から10の整数}],
  "detected_categories": [{"label": "カテゴリ名", "confidence": 1から10の整数}],
  "keywords": ["キーワード1", "キーワード2"],
  "suggested_prefecture": "都道府県名（不明なら空文字列）",
  "confidence": 0から100の整数
}

カテゴリは次の中から選んでください: DX・デジタル化, 省エネ・環境, 設備投資, 人材育成, 新事業, 海外展開, 研究開発, 事業承継, 働き方改革, 販路開拓`)
	return b.String()
}

// stripFences removes a ```json ... ``` fence if the model wrapped its
// answer despite the instruction.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
