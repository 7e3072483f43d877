// Package highlight turns threshold-crossing events into short
// promotional blurbs via the Gemini API. The scorer never calls this
// directly; the session manager is the threshold consumer.
package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/genai"
)

// degradeFor is how long the generator stays on the fallback model after
// hitting a rate limit.
const degradeFor = 30 * time.Second

// GeminiGenerator generates highlight copy using the Gemini API.
// Falls back to fallbackModel on 429/503, auto-recovers.
type GeminiGenerator struct {
	client        *genai.Client
	model         string
	fallbackModel string
	degraded      atomic.Bool
	recoverAt     atomic.Int64 // unix millis
}

func NewGeminiGenerator(ctx context.Context, apiKey, model, fallbackModel string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if fallbackModel == "" {
		fallbackModel = "gemini-2.0-flash"
	}
	return &GeminiGenerator{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
	}, nil
}

// Generate produces a one-or-two sentence highlight blurb for a detected
// live event, grounded in the recent transcript text.
func (g *GeminiGenerator) Generate(ctx context.Context, event string, score float64, transcript string) (string, error) {
	prompt := fmt.Sprintf(
		"A live broadcast just had a %q moment (detection score %.0f). "+
			"Recent commentary: %q. "+
			"Write ONE short, energetic sentence announcing this moment, suitable for "+
			"an instant social media post. Output only the sentence, nothing else.",
		event, score, transcript,
	)

	model := g.activeModel()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		if !isRateLimited(err) {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		if !g.degraded.Load() {
			slog.Warn("rate limited, falling back", "from", model, "to", g.fallbackModel, "duration", degradeFor)
		}
		g.degraded.Store(true)
		g.recoverAt.Store(time.Now().Add(degradeFor).UnixMilli())

		resp, err = g.client.Models.GenerateContent(ctx, g.fallbackModel, genai.Text(prompt), nil)
		if err != nil {
			return "", fmt.Errorf("gemini generate (fallback): %w", err)
		}
	}

	return strings.TrimSpace(resp.Text()), nil
}

func isRateLimited(err error) bool {
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "503") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "UNAVAILABLE")
}

// activeModel returns the current model, auto-recovering from the
// degraded state once the backoff window has passed.
func (g *GeminiGenerator) activeModel() string {
	if g.degraded.Load() {
		if time.Now().UnixMilli() >= g.recoverAt.Load() {
			g.degraded.Store(false)
			slog.Info("recovered from rate limit, back to primary model", "model", g.model)
			return g.model
		}
		return g.fallbackModel
	}
	return g.model
}
