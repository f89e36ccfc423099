package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/utils"
)

// Structured field keys shared across components.
const (
	FieldProvider      = "ai_provider"
	FieldModel         = "ai_model"
	FieldRunID         = "run_id"
	FieldCandidateHash = "candidate_hash"
	FieldJobUID        = "job_uid"
)

// StringField is a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace and omitting
// entries with an empty key or value.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// CommonFields describes the AI provider and model of a call.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// RunFields identifies one match run. The candidate hash is shortened for readability.
func RunFields(runID, candidateHash string) []zap.Field {
	return StringFields(
		StringField{Key: FieldRunID, Value: runID},
		StringField{Key: FieldCandidateHash, Value: utils.ShortHash(candidateHash)},
	)
}

func WithRunFields(logger *zap.Logger, runID, candidateHash string) *zap.Logger {
	return WithFields(logger, RunFields(runID, candidateHash)...)
}
