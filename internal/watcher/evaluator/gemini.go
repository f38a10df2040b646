package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-trade-sentry/internal/watcher/config"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/logger"
	"golang-trade-sentry/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiEvaluator asks the Gemini API to score a newly opened position.
// Request and token budgets are throttled the same way regardless of which
// model is configured.
type GeminiEvaluator struct {
	weight         float64
	cfg            *config.Config
	logger         *logger.Logger
	genAiClient    *genai.Client
	requestLimiter *rate.Limiter
	tokenLimiter   *ratelimit.TokenLimiter
}

type geminiVerdict struct {
	Score       int    `json:"score"`
	Rationale   string `json:"rationale"`
	PrimaryRisk string `json:"primary_risk"`
}

// NewGeminiEvaluator creates a Gemini-backed evaluator with the given weight.
func NewGeminiEvaluator(weight float64, cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) *GeminiEvaluator {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	return &GeminiEvaluator{
		weight:         weight,
		cfg:            cfg,
		logger:         log,
		genAiClient:    genAiClient,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
	}
}

func (e *GeminiEvaluator) Name() string    { return "gemini" }
func (e *GeminiEvaluator) Weight() float64 { return e.weight }

func (e *GeminiEvaluator) Score(ctx context.Context, evalCtx *dto.EvaluationContext) (*dto.EvaluatorScore, error) {
	prompt := buildScorePrompt(evalCtx)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}

	tokenResp, err := e.genAiClient.Models.CountTokens(ctx, e.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	if err := e.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}
	if err := e.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	resp, err := e.genAiClient.Models.GenerateContent(ctx, e.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	verdict, err := parseVerdict(resp.Text())
	if err != nil {
		return nil, err
	}

	return &dto.EvaluatorScore{
		Value:     clampScore(verdict.Score),
		Rationale: verdict.Rationale,
		Risk:      verdict.PrimaryRisk,
	}, nil
}

func buildScorePrompt(evalCtx *dto.EvaluationContext) string {
	var sb strings.Builder
	sb.WriteString("You are scoring a newly opened trade from a tracked trader.\n")
	sb.WriteString("Respond with only a JSON object: {\"score\": 0-100, \"rationale\": \"...\", \"primary_risk\": \"...\"}.\n\n")

	pos := evalCtx.Position
	sb.WriteString(fmt.Sprintf("Position: %s %s %s, open price %.2f, quantity %.0f\n",
		pos.Symbol, pos.Strategy, pos.Direction, pos.OpenPrice, pos.Quantity))
	if pos.Strike != nil {
		sb.WriteString(fmt.Sprintf("Strike: %.2f", *pos.Strike))
		if pos.Expiry != nil {
			sb.WriteString(fmt.Sprintf(", expiry %s", *pos.Expiry))
		}
		sb.WriteString("\n")
	}
	if evalCtx.Record.Notes != "" {
		sb.WriteString(fmt.Sprintf("Trader notes: %s\n", evalCtx.Record.Notes))
	}
	if market := evalCtx.Market; market != nil {
		sb.WriteString(fmt.Sprintf("Market: price %.2f, change %.2f%%, volume %d, volatility %.1f, sector %s\n",
			market.MarketPrice, market.ChangePercent, market.Volume, market.Volatility, market.Sector))
	}
	for _, headline := range evalCtx.Headlines {
		sb.WriteString(fmt.Sprintf("Headline: %s\n", headline.Title))
		if headline.Excerpt != "" {
			sb.WriteString(fmt.Sprintf("Excerpt: %s\n", headline.Excerpt))
		}
	}
	return sb.String()
}

func parseVerdict(text string) (*geminiVerdict, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict geminiVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, fmt.Errorf("unparseable gemini verdict %q: %w", cleaned, err)
	}
	return &verdict, nil
}
