// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a Sugared Logger that writes to stdout and
// provides human readable timestamps.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	if outputPaths != nil {
		config.OutputPaths = outputPaths
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

// EvHandler adapts the logger to the event handler the blockchain packages
// report through. Events prefixed with "viewer:" are also passed to send so
// they can reach websocket clients.
func EvHandler(log *zap.SugaredLogger, traceID string, send func(string)) func(v string, args ...any) {
	const websocketPrefix = "viewer:"

	return func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)

		switch {
		case strings.Contains(s, "ERROR"):
			log.Errorw(s, "traceid", traceID)
		case strings.Contains(s, "WARNING"):
			log.Warnw(s, "traceid", traceID)
		default:
			log.Infow(s, "traceid", traceID)
		}

		if send != nil && strings.HasPrefix(s, websocketPrefix) {
			send(s)
		}
	}
}
