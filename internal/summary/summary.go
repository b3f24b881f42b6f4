// Package summary writes a short AI recap of a month of watched shows.
// Every failure degrades to a fixed message; callers always get text.
package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/metrics"
)

const (
	MsgNoAPIKey   = "Please configure your API Key to use the AI summary feature."
	MsgQuietMonth = "This month was quiet! Go see some shows to get a summary."
	MsgEmpty      = "Could not generate summary."
	MsgFailed     = "Sorry, the AI muse is taking a break. Please try again later."
)

// Outcome classifies how a summary was produced.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeNoAPIKey  Outcome = "no_api_key"
	OutcomeQuiet     Outcome = "quiet"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
)

// Result is a summary and how it came about.
type Result struct {
	Month   string  `json:"month"`
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns watched records into a monthly recap.
type Summarizer struct {
	gen     Generator
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New returns a Summarizer. A nil gen means no API key is configured.
func New(gen Generator, logger *zap.Logger, m *metrics.Metrics) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gen: gen, logger: logger.Named("summary"), metrics: m}
}

// Summarize writes the recap of month (a label such as "2024-06") from the
// records watched in it.
func (s *Summarizer) Summarize(ctx context.Context, month string, records []journal.Record) Result {
	res := s.summarize(ctx, month, records)
	res.Month = month
	if s.metrics != nil {
		s.metrics.Summaries.WithLabelValues(string(res.Outcome)).Inc()
	}
	return res
}

func (s *Summarizer) summarize(ctx context.Context, month string, records []journal.Record) Result {
	if s.gen == nil {
		return Result{Text: MsgNoAPIKey, Outcome: OutcomeNoAPIKey}
	}
	if len(records) == 0 {
		return Result{Text: MsgQuietMonth, Outcome: OutcomeQuiet}
	}

	text, err := s.gen.Generate(ctx, Prompt(month, records))
	if err != nil {
		s.logger.Error("generating summary", zap.String("month", month), zap.Error(err))
		return Result{Text: MsgFailed, Outcome: OutcomeFailed}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Text: MsgEmpty, Outcome: OutcomeEmpty}
	}
	return Result{Text: text, Outcome: OutcomeGenerated}
}

// Prompt builds the model prompt listing the month's shows.
func Prompt(month string, records []journal.Record) string {
	var shows strings.Builder
	for _, r := range records {
		actors := make([]string, 0, len(r.Cast))
		for _, c := range r.Cast {
			actors = append(actors, c.Actor)
		}
		fmt.Fprintf(&shows, "- %s at %s on %s. Role/Cast highlights: %s\n",
			r.Title, r.Location, r.Date, strings.Join(actors, ", "))
	}
	return fmt.Sprintf(`I am a musical theater enthusiast. Here is a list of shows I watched in %s:
%s
Total spent: %s.

Please write a short, fun, and emotional monthly summary (in Chinese) for my theater diary.
Focus on the joy of live performance, the variety of shows, and the money spent (worth it!).
Keep the tone enthusiastic and suitable for a social media share.
Do not use markdown formatting like bolding or headers, just plain text paragraphs.`,
		month, shows.String(), formatAmount(journal.SumPrices(records)))
}

func formatAmount(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// Gemini generates text with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini-backed Generator, or nil when apiKey is empty.
func NewGemini(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
