package service

import (
	"context"

	"github.com/kbukum/warden/reports"
)

// Service is one unit of long-running work. A constructed instance is run
// at most once; the supervisor builds a fresh one for every iteration.
//
// Run returning nil means the work completed. A non-nil error is a crash.
// Neither result asks to keep the instance running.
type Service interface {
	Run(ctx context.Context) error
}

// Func adapts an ordinary function to Service.
type Func func(ctx context.Context) error

// Run calls f(ctx).
func (f Func) Run(ctx context.Context) error { return f(ctx) }

// Constructor builds a Service that may report problems through errs.
// It is run under the restart-forever policy. errs may be nil, in which
// case every report is dropped.
type Constructor[D any] func(ctx context.Context, deps D, errs *reports.Sender) (Service, error)

// ReceiverConstructor builds a Service that consumes the shared report
// receiver. It is run under the restart-until-report policy. rx may be nil.
type ReceiverConstructor[D any] func(ctx context.Context, deps D, rx *reports.SharedReceiver) (Service, error)

// Describer is optionally implemented by a Service to name itself in
// logs and slot snapshots when the spawn name is not enough.
type Describer interface {
	Describe() string
}
