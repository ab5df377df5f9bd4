package auditlogs

import (
	"context"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/common"
	"github.com/NeuralTrust/TrustBoundary/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Emit(c *fiber.Ctx, event Event)
	Close() error
}

// DefaultSinkTimeout bounds each sink write so a slow backend cannot hold the
// request that produced the event.
const DefaultSinkTimeout = 2 * time.Second

// Sink delivers an already redacted event. Write must return once ctx is done.
type Sink interface {
	Write(ctx context.Context, event Event) error
	Close() error
}

// Encrypter is the subset of the encryption service used to protect actor data.
type Encrypter interface {
	Enabled() bool
	EncryptString(plaintext string) (string, error)
}

type service struct {
	enabled   bool
	logger    *logrus.Logger
	encrypter Encrypter
	sinks       []Sink
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewService(logger *logrus.Logger, encrypter Encrypter, enabled bool, sinks ...Sink) Service {
	if len(sinks) == 0 {
		sinks = []Sink{NewLogSink(logger)}
	}
	return &service{
		enabled:     enabled,
		logger:      logger,
		encrypter:   encrypter,
		sinks:       sinks,
		sinkTimeout: DefaultSinkTimeout,
		now:         time.Now,
	}
}

func (s *service) Emit(c *fiber.Ctx, event Event) {
	if !s.enabled {
		return
	}

	if event.Time.IsZero() {
		event.Time = s.now().UTC()
	}
	if event.Context.IPAddress == "" {
		event.Context.IPAddress = c.IP()
	}
	if event.Context.UserAgent == "" {
		event.Context.UserAgent = c.Get(fiber.HeaderUserAgent)
	}
	if event.Context.Client == "" {
		event.Context.Client = utils.ParseUserAgent(event.Context.UserAgent, c.Get(fiber.HeaderAcceptLanguage)).String()
	}
	if event.Context.RequestID == "" {
		if id, ok := c.Locals(string(common.RequestIDContextKey)).(string); ok {
			event.Context.RequestID = id
		}
	}

	event.Context.IPAddress = s.protect(event.Context.IPAddress)
	event.Context.UserAgent = s.protect(event.Context.UserAgent)
	event.Context.InputPreview = s.protect(event.Context.InputPreview)

	for _, sink := range s.sinks {
		s.write(c.UserContext(), sink, event)
	}
}

func (s *service) write(parent context.Context, sink Sink, event Event) {
	ctx, cancel := context.WithTimeout(parent, s.sinkTimeout)
	defer cancel()
	if err := sink.Write(ctx, event); err != nil {
		s.logger.Errorf("failed to emit audit event: %v", err)
	}
}

// protect drops the value when it cannot be encrypted rather than leaking it.
func (s *service) protect(value string) string {
	if value == "" || s.encrypter == nil || !s.encrypter.Enabled() {
		return value
	}
	encrypted, err := s.encrypter.EncryptString(value)
	if err != nil {
		s.logger.WithError(err).Error("failed to encrypt audit field")
		return ""
	}
	return encrypted
}

func (s *service) Close() error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogSink writes audit events to the process logger.
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Write(_ context.Context, event Event) error {
	l.logger.WithFields(logrus.Fields{
		"audit":         true,
		"event_type":    event.Event.Type,
		"category":      event.Event.Category,
		"status":        event.Event.Status,
		"target_type":   event.Target.Type,
		"target_id":     event.Target.ID,
		"ip_address":    event.Context.IPAddress,
		"user_agent":    event.Context.UserAgent,
		"request_id":    event.Context.RequestID,
		"input_preview": event.Context.InputPreview,
		"client":        event.Context.Client,
		"event_time":    event.Time.Format(time.RFC3339),
	}).Warn(event.Event.Description)
	return nil
}

func (l *LogSink) Close() error {
	return nil
}
