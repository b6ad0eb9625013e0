package alert

import (
	"context"

	"github.com/kbukum/warden/logger"
)

// Notifier delivers one error report somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string) error

// Notify calls f(ctx, msg).
func (f NotifierFunc) Notify(ctx context.Context, msg string) error { return f(ctx, msg) }

// LogNotifier writes each report as an error-level log record.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses the "alert"
// component logger.
func NewLogNotifier(l *logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Get("alert")
	}
	return &LogNotifier{log: l}
}

// Notify logs msg.
func (n *LogNotifier) Notify(_ context.Context, msg string) error {
	n.log.Error("Error report", logger.Fields("report", msg))
	return nil
}
