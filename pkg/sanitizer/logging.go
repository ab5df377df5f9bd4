package sanitizer

import (
	"github.com/sirupsen/logrus"
)

const logPreviewLength = 200

// LogResult records a sanitization outcome at a level derived from its risk.
func LogResult(logger *logrus.Logger, input string, result Result, fields logrus.Fields) {
	if logger == nil {
		return
	}
	entry := logger.WithFields(fields).WithFields(logrus.Fields{
		"risk_level":          result.RiskLevel,
		"should_block":        result.ShouldBlock,
		"was_modified":        result.WasModified,
		"suspicious_patterns": result.SuspiciousPatterns,
		"input_preview":       Preview(input),
	})
	switch LogLevelFor(result.RiskLevel) {
	case logrus.WarnLevel:
		entry.Warn("high risk input detected")
	case logrus.InfoLevel:
		entry.Info("medium risk input detected")
	default:
		entry.Debug("input sanitized")
	}
}

func LogLevelFor(risk RiskLevel) logrus.Level {
	switch risk {
	case RiskHigh:
		return logrus.WarnLevel
	case RiskMedium:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Preview shortens input to at most 200 characters followed by an ellipsis.
func Preview(input string) string {
	if len([]rune(input)) <= logPreviewLength {
		return input
	}
	return truncate(input, logPreviewLength) + "..."
}
