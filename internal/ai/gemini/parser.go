package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/utils"
)

//go:embed parse_prompt.md
var parsePrompt string

// Parser extracts a candidate profile from CV text with Gemini.
type Parser struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewParser(generator contentGenerator, maxLogLength int, log *zap.Logger) *Parser {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Parser{
		generator: generator,
		logger:    logger.WithCommonFields(log, provider, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (p *Parser) ParseProfile(ctx context.Context, cvText string) (*candidate.Profile, error) {
	cvText = strings.TrimSpace(cvText)
	if cvText == "" {
		return nil, errors.New("cv text must not be empty")
	}

	p.logger.Debug("gemini parse request",
		zap.Int("cv_length", utf8.RuneCountInString(cvText)),
		zap.String("cv_preview", utils.TruncateForLog(cvText, p.maxLogLen)),
	)

	raw, err := p.generator.GenerateContent(ctx, parsePrompt, "[CV]\n"+cvText)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("gemini parse response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	profile, err := parseProfile(raw)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func parseProfile(raw string) (*candidate.Profile, error) {
	cleaned := extractJSON(raw)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("parse gemini response: invalid json")
	}

	fields, ok := gjson.Parse(cleaned).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse gemini response: expected a json object")
	}

	var profile candidate.Profile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &profile,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &profile, nil
}
