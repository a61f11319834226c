package logging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapBackend adapts a zap logger. Level checks defer to the zap core.
type ZapBackend struct {
	logger   *zap.Logger
	level    *zap.AtomicLevel
	redactor *Redactor
}

// NewZapBackend wraps an existing zap logger. Its level is fixed by the
// core; SetLevel is a no-op.
func NewZapBackend(logger *zap.Logger, redactor *Redactor) *ZapBackend {
	return &ZapBackend{logger: logger, redactor: redactor}
}

// NewZapProduction builds a JSON zap logger from cfg with an adjustable level.
func NewZapProduction(cfg Config) (*ZapBackend, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	zcfg.DisableCaller = !cfg.AddSource
	zcfg.Sampling = nil
	if f, _ := parseFormat(cfg.Format); f != FormatJSON {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	var redactor *Redactor
	if cfg.RedactPII {
		redactor = NewRedactor(cfg.RedactPatterns)
	}

	atom := zcfg.Level
	return &ZapBackend{logger: logger, level: &atom, redactor: redactor}, nil
}

// Log writes the record through the zap core, bypassing zap's level check.
func (z *ZapBackend) Log(_ context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	attrs = z.redactor.RedactAttrs(attrs)
	fields := make([]zap.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = appendZapFields(fields, "", a)
	}

	ent := zapcore.Entry{
		Level:      zapLevel(level),
		Time:       time.Now(),
		Message:    z.redactor.RedactString(msg),
		LoggerName: z.logger.Name(),
	}
	ce := z.logger.Core().Check(ent, nil)
	if ce == nil {
		// The core filters below its own level; force the write.
		_ = z.logger.Core().Write(ent, fields)
		return
	}
	ce.Write(fields...)
}

// Enabled reports whether the zap core accepts level.
func (z *ZapBackend) Enabled(_ context.Context, level slog.Level) bool {
	return z.logger.Core().Enabled(zapLevel(level))
}

// SetLevel changes the level when the backend owns an atomic level.
func (z *ZapBackend) SetLevel(level slog.Level) {
	if z.level != nil {
		z.level.SetLevel(zapLevel(level))
	}
}

// Sync flushes buffered entries.
func (z *ZapBackend) Sync() error {
	return z.logger.Sync()
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func appendZapFields(fields []zap.Field, prefix string, a slog.Attr) []zap.Field {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			fields = appendZapFields(fields, key, ga)
		}
		return fields
	case slog.KindString:
		return append(fields, zap.String(key, v.String()))
	case slog.KindInt64:
		return append(fields, zap.Int64(key, v.Int64()))
	case slog.KindUint64:
		return append(fields, zap.Uint64(key, v.Uint64()))
	case slog.KindFloat64:
		return append(fields, zap.Float64(key, v.Float64()))
	case slog.KindBool:
		return append(fields, zap.Bool(key, v.Bool()))
	case slog.KindDuration:
		return append(fields, zap.Duration(key, v.Duration()))
	case slog.KindTime:
		return append(fields, zap.Time(key, v.Time()))
	default:
		if err, ok := v.Any().(error); ok {
			return append(fields, zap.NamedError(key, err))
		}
		return append(fields, zap.Any(key, v.Any()))
	}
}
