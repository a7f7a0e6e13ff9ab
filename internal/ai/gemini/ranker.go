package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/ai"
	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Ranker asks Gemini to order candidate listings for a client profile.
type Ranker struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewRanker(generator contentGenerator, log *zap.Logger, maxLogLength int) *Ranker {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Ranker{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// RankListings sends the profile and candidates to the model and parses the
// ranked subset it returns. Entries referencing unknown listing IDs are
// dropped; an empty ranking is an error so callers can fall back.
func (r *Ranker) RankListings(ctx context.Context, profile domain.RequirementProfile, notes string, candidates []domain.Listing) ([]ai.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, errors.New("no candidates to rank")
	}

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	listingsJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(listingsJSON), notes)

	r.logger.Debug("gemini ranking request",
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, r.maxLogLen)),
	)

	ranked, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}

	out := make([]ai.RankedCandidate, 0, len(ranked))
	for _, entry := range ranked {
		if _, ok := known[entry.ID]; !ok {
			r.logger.Debug("dropping ranked entry for unknown listing",
				zap.String("listing_id", entry.ID),
			)
			continue
		}
		out = append(out, entry)
	}

	if len(out) == 0 {
		return nil, errors.New("gemini ranking contained no known listings")
	}

	return out, nil
}

func buildPrompt(profileJSON, listingsJSON, notes string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE_JSON}}\n\nNotes:\n{{NOTES}}\n\nListings:\n{{LISTINGS_JSON}}\n\nJSON Response:"
	}

	if notes = strings.TrimSpace(notes); notes == "" {
		notes = "none"
	}

	prompt := strings.ReplaceAll(template, "{{PROFILE_JSON}}", profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{LISTINGS_JSON}}", listingsJSON)
	prompt = strings.ReplaceAll(prompt, "{{NOTES}}", notes)
	return prompt
}

func parseResponse(raw string) ([]ai.RankedCandidate, error) {
	cleaned := extractJSON(raw)

	var entries []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(entries) == 0 {
		return nil, errors.New("gemini returned an empty ranking")
	}

	out := make([]ai.RankedCandidate, 0, len(entries))
	for _, entry := range entries {
		id := coerceString(entry["id"])
		if id == "" {
			continue
		}

		score := coerceFloat(entry["score"])
		if math.IsNaN(score) {
			score = 0
		}
		score = math.Max(0, math.Min(100, score))

		out = append(out, ai.RankedCandidate{
			ID:     id,
			Score:  score,
			Reason: coerceString(entry["reason"]),
		})
	}

	if len(out) == 0 {
		return nil, errors.New("gemini ranking contained no usable entries")
	}

	return out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
