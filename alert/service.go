package alert

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/reports"
	"github.com/kbukum/warden/service"
)

// Service drains the shared report receiver and forwards every report to
// a Notifier. It is meant to run as the restart-until-report slot.
type Service struct {
	rx       *reports.SharedReceiver
	notifier Notifier
	log      *logger.Logger
}

// Option customizes the alert Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the alert service. A nil notifier logs reports instead.
func New(rx *reports.SharedReceiver, n Notifier, opts ...Option) *Service {
	s := &Service{rx: rx, notifier: n, log: logger.Get("alert")}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.log)
	}
	return s
}

// Constructor adapts New to the supervisor: notifier picks the Notifier
// out of the shared deps value.
func Constructor[D any](notifier func(D) Notifier, opts ...Option) service.ReceiverConstructor[D] {
	return func(_ context.Context, deps D, rx *reports.SharedReceiver) (service.Service, error) {
		var n Notifier
		if notifier != nil {
			n = notifier(deps)
		}
		return New(rx, n, opts...), nil
	}
}

// Run takes one report at a time and forwards it. The receiver is held
// only while waiting for a report, not while notifying. A failed delivery
// is logged and the loop continues. With no receiver Run completes at
// once; a closed channel or an ended context is returned as an error.
func (s *Service) Run(ctx context.Context) error {
	if s.rx == nil {
		return nil
	}
	for {
		msg, err := s.rx.Recv(ctx)
		if err != nil {
			return err
		}
		s.forward(ctx, msg)
	}
}

// Describe names the service in supervisor snapshots.
func (s *Service) Describe() string {
	return "forwards error reports"
}

func (s *Service) forward(ctx context.Context, msg string) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAlertNotify,
		trace.WithAttributes(attribute.Int("alert.report_length", len(msg))))
	err := s.notifier.Notify(ctx, msg)
	observability.EndSpan(span, err)
	if err != nil {
		s.log.Error("Failed to send error alert", logger.Fields(logger.FieldError, err.Error()))
	}
}
