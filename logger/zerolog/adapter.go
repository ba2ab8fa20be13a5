// Package zerolog adapts github.com/rs/zerolog to the core.Logger interface.
package zerolog

import (
	"fmt"
	"os"
	"time"

	"swingline/core"

	"github.com/rs/zerolog"
)

// Adapter wraps a zerolog logger behind core.Logger.
type Adapter struct {
	logger *zerolog.Logger
}

// New creates a console-writer adapter suitable for CLI use.
func New(level core.Level) *Adapter {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(writer).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &Adapter{logger: &logger}
}

// NewAdapter wraps an existing zerolog logger.
func NewAdapter(logger *zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

func (a *Adapter) WithField(key string, value any) core.Logger {
	logger := a.logger.With().Interface(key, value).Logger()
	return &Adapter{logger: &logger}
}

func (a *Adapter) WithFields(fields map[string]any) core.Logger {
	logger := a.logger.With().Fields(fields).Logger()
	return &Adapter{logger: &logger}
}

func (a *Adapter) WithError(err error) core.Logger {
	logger := a.logger.With().Err(err).Logger()
	return &Adapter{logger: &logger}
}

func (a *Adapter) Debug(args ...any) { a.logger.Debug().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Info(args ...any)  { a.logger.Info().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Warn(args ...any)  { a.logger.Warn().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Error(args ...any) { a.logger.Error().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Fatal(args ...any) { a.logger.Fatal().Msg(fmt.Sprint(args...)) }

func (a *Adapter) Debugf(format string, args ...any) { a.logger.Debug().Msgf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.logger.Info().Msgf(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.logger.Warn().Msgf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.logger.Error().Msgf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.logger.Fatal().Msgf(format, args...) }

func (a *Adapter) SetLevel(level core.Level) {
	logger := a.logger.Level(toZerologLevel(level))
	a.logger = &logger
}

func (a *Adapter) GetLevel() core.Level {
	return toLevel(a.logger.GetLevel())
}

func toZerologLevel(level core.Level) zerolog.Level {
	switch level {
	case core.Disabled:
		return zerolog.Disabled
	case core.DebugLevel:
		return zerolog.DebugLevel
	case core.InfoLevel:
		return zerolog.InfoLevel
	case core.WarnLevel:
		return zerolog.WarnLevel
	case core.ErrorLevel:
		return zerolog.ErrorLevel
	case core.FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func toLevel(level zerolog.Level) core.Level {
	switch level {
	case zerolog.Disabled:
		return core.Disabled
	case zerolog.DebugLevel:
		return core.DebugLevel
	case zerolog.InfoLevel:
		return core.InfoLevel
	case zerolog.WarnLevel:
		return core.WarnLevel
	case zerolog.ErrorLevel:
		return core.ErrorLevel
	case zerolog.FatalLevel:
		return core.FatalLevel
	default:
		return core.InfoLevel
	}
}
