package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/ai"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed explain_prompt.md
var explainPrompt string

const (
	defaultMaxLogLength     = 200
	defaultTone             = "Friendly"
	maxUserInstructionRunes = 500
	maxTips                 = 2
)

// PromptOverrides are user preferences appended to the explanation prompt.
type PromptOverrides struct {
	Tone             string `mapstructure:"tone"`
	UserInstructions string `mapstructure:"user_instructions"`
}

// Explainer asks Gemini to explain a ranked match.
type Explainer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides
}

func NewExplainer(generator contentGenerator, maxLogLength int, log *zap.Logger) *Explainer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Explainer{
		generator: generator,
		logger:    logger.WithCommonFields(log, provider, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (e *Explainer) SetPromptOverrides(overrides PromptOverrides) {
	e.overrides = overrides
}

func (e *Explainer) Explain(ctx context.Context, req *ai.ExplainRequest) (*ai.Explanation, error) {
	if req == nil {
		return nil, errors.New("explain request is required")
	}
	if strings.TrimSpace(req.JobSummary) == "" {
		return nil, errors.New("job summary is required")
	}

	system := e.systemPrompt()
	message := buildExplainMessage(req)

	e.logger.Debug("gemini explain request",
		zap.String("job_uid", req.JobUID),
		zap.Int("prompt_length", utf8.RuneCountInString(system)+utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini explain response",
		zap.String("job_uid", req.JobUID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	explanation, err := parseExplanation(raw)
	if err != nil {
		return nil, err
	}
	explanation.MissingSkills = restrictTo(explanation.MissingSkills, req.MissingSkills)
	explanation.Raw = raw
	return explanation, nil
}

func (e *Explainer) systemPrompt() string {
	tone := sanitizeLine(e.overrides.Tone)
	if tone == "" {
		tone = defaultTone
	}
	prompt := strings.ReplaceAll(explainPrompt, "{{TONE}}", tone)
	return strings.ReplaceAll(prompt, "{{USER_INSTRUCTIONS}}", sanitizeInstructions(e.overrides.UserInstructions))
}

func buildExplainMessage(req *ai.ExplainRequest) string {
	missing := "none"
	if len(req.MissingSkills) > 0 {
		missing = strings.Join(req.MissingSkills, ", ")
	}
	return fmt.Sprintf("[Inputs]\nCandidate:\n%s\n\nJob:\n%s\n\nMatch score: %.2f\nMissing skills: %s",
		strings.TrimSpace(req.ProfileSummary), strings.TrimSpace(req.JobSummary), req.FinalScore, missing)
}

func parseExplanation(raw string) (*ai.Explanation, error) {
	cleaned := extractJSON(raw)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("parse gemini response: invalid json")
	}

	result := gjson.Parse(cleaned)
	text := strings.TrimSpace(result.Get("explanation").String())
	if text == "" {
		return nil, errors.New("parse gemini response: explanation is empty")
	}

	tips := stringArray(result.Get("tips"))
	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}

	return &ai.Explanation{
		Text:          text,
		MissingSkills: stringArray(result.Get("missing_skills")),
		Tips:          tips,
	}, nil
}

// restrictTo keeps the refined skills that were part of the requested list, compared case-insensitively.
func restrictTo(refined, requested []string) []string {
	allowed := make(map[string]struct{}, len(requested))
	for _, s := range requested {
		allowed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	out := make([]string, 0, len(refined))
	for _, s := range refined {
		if _, ok := allowed[strings.ToLower(s)]; ok {
			out = append(out, s)
		}
	}
	return out
}

func stringArray(value gjson.Result) []string {
	var out []string
	for _, item := range value.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
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

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")", "{", "(", "}", ")")

// sanitizeLine collapses whitespace and neutralizes section markers in a single-line field.
func sanitizeLine(s string) string {
	return bracketReplacer.Replace(strings.Join(strings.Fields(s), " "))
}

// sanitizeInstructions renders free-form user instructions as an indented list, one entry per
// non-empty line, truncated to maxUserInstructionRunes.
func sanitizeInstructions(s string) string {
	var lines []string
	remaining := maxUserInstructionRunes
	for _, line := range strings.Split(s, "\n") {
		line = sanitizeLine(line)
		if line == "" || remaining == 0 {
			continue
		}
		if runes := []rune(line); len(runes) > remaining {
			line = string(runes[:remaining])
		}
		remaining -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}
