package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldIdentifier = "identifier"
	FieldStage      = "stage"
	FieldAttempt    = "attempt"
	FieldKind       = "kind"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with empty keys or values.
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

// WithModelFields tags logger with the language-model provider and model name.
func WithModelFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// WithIdentifier tags logger with the developer handle being processed.
func WithIdentifier(logger *zap.Logger, identifier string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldIdentifier, Value: identifier})...)
}

func Stage(stage string) zap.Field { return zap.String(FieldStage, stage) }

func Attempt(n int) zap.Field { return zap.Int(FieldAttempt, n) }

func Kind(kind string) zap.Field { return zap.String(FieldKind, kind) }
