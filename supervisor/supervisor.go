package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/warden/errors"
	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/reports"
	"github.com/kbukum/warden/service"
)

// errNilService is the crash recorded when a constructor returns neither
// a service nor an error.
var errNilService = stderrors.New("constructor returned a nil service")

// exit is a slot termination not yet returned by Wait.
type exit struct {
	slot *Slot
	err  error
}

// Supervisor owns a set of slots built from one shared deps value.
// Every slot runs in its own goroutine.
type Supervisor[D any] struct {
	deps    D
	opts    options
	log     *logger.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	slots   []*Slot
	running int
	exits   []exit
	changed chan struct{}
}

// New creates a supervisor. deps is copied into every constructor call.
func New[D any](deps D, opts ...Option) *Supervisor[D] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor[D]{
		deps:    deps,
		opts:    o,
		log:     o.logger,
		metrics: o.metrics,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}
}

// Spawn runs ctor under the restart-forever policy: after the service
// crashes or completes it is constructed and run again. Nothing is
// escalated unless WithMaxCrashes is set.
func (s *Supervisor[D]) Spawn(name string, ctor service.Constructor[D], errs *reports.Sender) *Slot {
	slot := s.register(name, PolicyRestartForever)
	go s.loop(slot, func(ctx context.Context) (service.Service, error) {
		return ctor(ctx, s.deps, errs)
	})
	return slot
}

// SpawnWithSharedReceiver runs ctor under the restart-until-report policy:
// a completion reruns the service, the first crash is logged once and
// terminates the slot, which makes Wait return a fatal error.
func (s *Supervisor[D]) SpawnWithSharedReceiver(name string, ctor service.ReceiverConstructor[D], rx *reports.SharedReceiver) *Slot {
	slot := s.register(name, PolicyRestartUntilReport)
	go s.loop(slot, func(ctx context.Context) (service.Service, error) {
		return ctor(ctx, s.deps, rx)
	})
	return slot
}

// Wait blocks until a slot terminates and returns a SERVICE_FATAL
// *errors.AppError naming it. Each termination is returned once; a later
// call waits for the next one. Wait returns nil when no slot is running
// and no termination is pending, and ctx.Err() if ctx ends first.
func (s *Supervisor[D]) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.exits) > 0 {
			e := s.exits[0]
			s.exits = s.exits[1:]
			s.mu.Unlock()
			return errors.ServiceFatal(e.slot.name, e.err).
				WithDetail("slot_id", e.slot.id).
				WithDetail("policy", e.slot.policy.String())
		}
		if s.running == 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown cancels every slot's context and waits for the loops to
// return. Slots stopped this way are not reported to Wait.
func (s *Supervisor[D]) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Slots returns a snapshot of every slot ever spawned, in spawn order.
func (s *Supervisor[D]) Slots() []SlotStatus {
	s.mu.Lock()
	slots := append([]*Slot(nil), s.slots...)
	s.mu.Unlock()

	out := make([]SlotStatus, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Status())
	}
	return out
}

// Running returns the number of slots whose loop is still active.
func (s *Supervisor[D]) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CheckHealth reports down once any slot has been escalated, degraded
// while any slot is in a crash streak, and up otherwise.
func (s *Supervisor[D]) CheckHealth(_ context.Context) observability.Health {
	h := observability.Health{
		Name:    "supervisor",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{},
	}
	for _, st := range s.Slots() {
		h.Details[st.Name+"/"+st.ID] = st.State
		switch {
		case st.Escalated:
			h.Status = observability.HealthStatusDown
			h.Message = fmt.Sprintf("service %s terminated: %s", st.Name, st.LastError)
		case st.Consecutive > 0 && h.Status == observability.HealthStatusUp:
			h.Status = observability.HealthStatusDegraded
			h.Message = fmt.Sprintf("service %s is restarting after %d crashes", st.Name, st.Consecutive)
		}
	}
	return h
}

func (s *Supervisor[D]) register(name string, policy Policy) *Slot {
	slot := newSlot(name, policy)
	s.mu.Lock()
	s.slots = append(s.slots, slot)
	s.running++
	s.mu.Unlock()
	s.wg.Add(1)
	s.log.Debug("Service spawned", s.slotFields(slot))
	return slot
}

// loop is the per-slot state machine.
func (s *Supervisor[D]) loop(slot *Slot, build func(context.Context) (service.Service, error)) {
	for {
		if s.ctx.Err() != nil {
			s.stop(slot)
			return
		}

		err := s.iterate(slot, build)
		if s.ctx.Err() != nil {
			s.stop(slot)
			return
		}

		if err == nil {
			slot.completed()
			s.metrics.RecordSlotRestart(s.ctx, slot.name, slot.policy.String(), "completed")
		} else {
			streak := slot.crashed(err)
			if slot.policy == PolicyRestartUntilReport {
				s.escalate(slot, err)
				return
			}
			if s.opts.maxCrashes > 0 && streak >= s.opts.maxCrashes {
				s.escalate(slot, fmt.Errorf("crashed %d consecutive times: %w", streak, err))
				return
			}
			s.log.Debug("Service crashed, restarting", s.slotFields(slot, logger.FieldError, err.Error()))
			s.metrics.RecordSlotRestart(s.ctx, slot.name, slot.policy.String(), "crashed")
		}

		if !s.pause() {
			s.stop(slot)
			return
		}
	}
}

// iterate constructs one service instance and runs it to completion.
func (s *Supervisor[D]) iterate(slot *Slot, build func(context.Context) (service.Service, error)) error {
	slot.constructing()
	return safely(func() error {
		svc, err := build(s.ctx)
		if err != nil {
			return fmt.Errorf("construct: %w", err)
		}
		if svc == nil {
			return errNilService
		}
		description := ""
		if d, ok := svc.(service.Describer); ok {
			description = d.Describe()
		}
		slot.running(description)
		return svc.Run(s.ctx)
	})
}

func (s *Supervisor[D]) pause() bool {
	if s.opts.restartDelay <= 0 {
		return s.ctx.Err() == nil
	}
	timer := time.NewTimer(s.opts.restartDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// escalate emits the single failure record for slot and queues its exit.
func (s *Supervisor[D]) escalate(slot *Slot, err error) {
	slot.reported()
	s.log.Error("Service error", s.slotFields(slot, logger.FieldError, err.Error()))
	s.metrics.RecordSlotFailure(s.ctx, slot.name, slot.policy.String())
	s.finish(slot, &exit{slot: slot, err: err})
}

// stop ends slot after cancellation without queueing an exit.
func (s *Supervisor[D]) stop(slot *Slot) {
	s.log.Debug("Service stopped", s.slotFields(slot))
	s.finish(slot, nil)
}

func (s *Supervisor[D]) finish(slot *Slot, e *exit) {
	slot.setState(StateTerminated)
	s.mu.Lock()
	s.running--
	if e != nil {
		s.exits = append(s.exits, *e)
	}
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
	close(slot.done)
	s.wg.Done()
}

func (s *Supervisor[D]) slotFields(slot *Slot, kvs ...interface{}) map[string]interface{} {
	f := logger.Fields(kvs...)
	f[logger.FieldService] = slot.name
	f[logger.FieldSlotID] = slot.id
	f[logger.FieldPolicy] = slot.policy.String()
	return f
}
