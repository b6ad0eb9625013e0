package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	werrors "github.com/kbukum/warden/errors"
	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/reports"
	"github.com/kbukum/warden/service"
)

type deps struct {
	Region string
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(b.buf.String()))
	for sc.Scan() {
		var e map[string]any
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("malformed log line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func jsonLogger(buf *syncBuffer) *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", buf)
}

func newSupervisor(t *testing.T, opts ...Option) *Supervisor[deps] {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	sup := New(deps{Region: "eu"}, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// crashThenBlock builds services whose first n runs fail; later runs
// block until the supervisor stops them.
func crashThenBlock(n int32, built *int32) service.Constructor[deps] {
	return func(ctx context.Context, d deps, _ *reports.Sender) (service.Service, error) {
		iteration := atomic.AddInt32(built, 1)
		return service.Func(func(ctx context.Context) error {
			if iteration <= n {
				return errors.New("transient crash")
			}
			<-ctx.Done()
			return ctx.Err()
		}), nil
	}
}

func crashing(msg string) service.ReceiverConstructor[deps] {
	return func(context.Context, deps, *reports.SharedReceiver) (service.Service, error) {
		return service.Func(func(context.Context) error { return errors.New(msg) }), nil
	}
}

func waitShort(sup *Supervisor[deps], d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sup.Wait(ctx)
}

func expectFatal(t *testing.T, err error) *werrors.AppError {
	t.Helper()
	appErr, ok := werrors.AsAppError(err)
	if !ok || appErr.Code != werrors.ErrCodeServiceFatal {
		t.Fatalf("expected SERVICE_FATAL, got %v", err)
	}
	return appErr
}

func expectStillRunning(t *testing.T, sup *Supervisor[deps], d time.Duration) {
	t.Helper()
	if err := waitShort(sup, d); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait should still be blocked, got %v", err)
	}
}

func TestSpawn_ForeverReconstructsAfterEachCrash(t *testing.T) {
	for _, n := range []int32{0, 1, 5, 25} {
		sup := newSupervisor(t)
		var built int32
		slot := sup.Spawn("poller", crashThenBlock(n, &built), nil)

		waitFor(t, "slot to settle", func() bool {
			return atomic.LoadInt32(&built) == n+1 && slot.State() == StateRunning
		})

		if got := slot.Constructions(); got != int(n+1) {
			t.Errorf("n=%d: expected %d constructions, got %d", n, n+1, got)
		}
		if got := slot.Crashes(); got != int(n) {
			t.Errorf("n=%d: expected %d crashes, got %d", n, n, got)
		}
		expectStillRunning(t, sup, 30*time.Millisecond)
	}
}

func TestSpawn_ForeverRestartsAfterCompletion(t *testing.T) {
	sup := newSupervisor(t)
	var built int32
	slot := sup.Spawn("ticker", func(ctx context.Context, _ deps, _ *reports.Sender) (service.Service, error) {
		iteration := atomic.AddInt32(&built, 1)
		return service.Func(func(ctx context.Context) error {
			if iteration <= 3 {
				return nil
			}
			<-ctx.Done()
			return nil
		}), nil
	}, nil)

	waitFor(t, "fourth run", func() bool { return slot.State() == StateRunning && slot.Constructions() == 4 })
	st := slot.Status()
	if st.Completions != 3 || st.Crashes != 0 {
		t.Errorf("expected 3 completions and no crashes, got %d and %d", st.Completions, st.Crashes)
	}
	if st.Policy != "restart_forever" {
		t.Errorf("unexpected policy %q", st.Policy)
	}
}

func TestSpawn_ConstructorErrorsAndNilServicesAreCrashes(t *testing.T) {
	sup := newSupervisor(t)
	var built int32
	slot := sup.Spawn("flaky", func(ctx context.Context, _ deps, _ *reports.Sender) (service.Service, error) {
		switch atomic.AddInt32(&built, 1) {
		case 1:
			return nil, errors.New("dial failed")
		case 2:
			return nil, nil
		default:
			return service.Func(func(ctx context.Context) error { <-ctx.Done(); return nil }), nil
		}
	}, nil)

	waitFor(t, "running", func() bool { return slot.State() == StateRunning })
	if slot.Constructions() != 3 || slot.Crashes() != 2 {
		t.Errorf("expected 3 constructions and 2 crashes, got %d and %d", slot.Constructions(), slot.Crashes())
	}
	if !errors.Is(slot.LastError(), errNilService) {
		t.Errorf("expected errNilService, got %v", slot.LastError())
	}
}

func TestSpawnWithSharedReceiver_FirstCrashReportedOnceAndFatal(t *testing.T) {
	buf := &syncBuffer{}
	sup := newSupervisor(t, WithLogger(jsonLogger(buf)))
	boom := errors.New("receiver lost")

	var built int32
	slot := sup.SpawnWithSharedReceiver("alert", func(ctx context.Context, _ deps, rx *reports.SharedReceiver) (service.Service, error) {
		atomic.AddInt32(&built, 1)
		return service.Func(func(ctx context.Context) error { return boom }), nil
	}, nil)

	err := waitShort(sup, time.Second)
	appErr := expectFatal(t, err)
	if !errors.Is(err, boom) {
		t.Errorf("expected the crash in the chain, got %v", err)
	}
	if appErr.Details["service"] != "alert" || appErr.Details["slot_id"] != slot.ID() {
		t.Errorf("unexpected details %v", appErr.Details)
	}

	<-slot.Done()
	if slot.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", slot.State())
	}
	if got := atomic.LoadInt32(&built); got != 1 {
		t.Errorf("a crashed receiver slot must not be rebuilt, built %d times", got)
	}

	var failures []map[string]any
	for _, e := range buf.entries(t) {
		if e["message"] == "Service error" {
			failures = append(failures, e)
		}
	}
	if len(failures) != 1 {
		t.Fatalf("expected exactly one failure record, got %d", len(failures))
	}
	f := failures[0]
	if f["level"] != "error" || f[logger.FieldService] != "alert" ||
		f[logger.FieldSlotID] != slot.ID() || f[logger.FieldError] != "receiver lost" {
		t.Errorf("unexpected failure record %v", f)
	}
}

func TestSpawnWithSharedReceiver_CompletionLoopsUntilCrash(t *testing.T) {
	sup := newSupervisor(t)
	var built int32
	slot := sup.SpawnWithSharedReceiver("alert", func(ctx context.Context, _ deps, _ *reports.SharedReceiver) (service.Service, error) {
		iteration := atomic.AddInt32(&built, 1)
		return service.Func(func(ctx context.Context) error {
			if iteration < 3 {
				return nil
			}
			return errors.New("crash on third run")
		}), nil
	}, nil)

	expectFatal(t, waitShort(sup, time.Second))
	st := slot.Status()
	if st.Constructions != 3 || st.Completions != 2 || !st.Escalated {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestSpawnWithSharedReceiver_PanicIsACrash(t *testing.T) {
	sup := newSupervisor(t)
	sup.SpawnWithSharedReceiver("alert", func(ctx context.Context, _ deps, _ *reports.SharedReceiver) (service.Service, error) {
		return service.Func(func(ctx context.Context) error { panic("nil map") }), nil
	}, nil)

	err := waitShort(sup, time.Second)
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError in chain, got %v", err)
	}
	if pe.Value != "nil map" || len(pe.Stack) == 0 {
		t.Errorf("unexpected panic error %v with %d stack bytes", pe.Value, len(pe.Stack))
	}
}

func TestWait_NoSlots(t *testing.T) {
	sup := newSupervisor(t)
	if err := sup.Wait(context.Background()); err != nil {
		t.Errorf("expected nil with no slots, got %v", err)
	}
}

func TestWait_ReturnsEachTerminationOnce(t *testing.T) {
	sup := newSupervisor(t)
	release := make(chan struct{})

	crashLater := func(ctx context.Context, _ deps, _ *reports.SharedReceiver) (service.Service, error) {
		return service.Func(func(context.Context) error {
			<-release
			return errors.New("second")
		}), nil
	}
	a := sup.SpawnWithSharedReceiver("a", crashing("first"), nil)
	b := sup.SpawnWithSharedReceiver("b", crashLater, nil)

	if got := expectFatal(t, waitShort(sup, time.Second)).Details["slot_id"]; got != a.ID() {
		t.Errorf("expected slot a first, got %v", got)
	}

	expectStillRunning(t, sup, 30*time.Millisecond)

	close(release)
	if got := expectFatal(t, waitShort(sup, time.Second)).Details["slot_id"]; got != b.ID() {
		t.Errorf("expected slot b second, got %v", got)
	}

	if err := sup.Wait(context.Background()); err != nil {
		t.Errorf("nothing left running or pending, got %v", err)
	}
}

func TestWait_ConcurrentWaitersAllWake(t *testing.T) {
	sup := newSupervisor(t)
	release := make(chan struct{})
	for _, name := range []string{"a", "b"} {
		sup.SpawnWithSharedReceiver(name, func(ctx context.Context, _ deps, _ *reports.SharedReceiver) (service.Service, error) {
			return service.Func(func(context.Context) error {
				<-release
				return errors.New("down")
			}), nil
		}, nil)
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- waitShort(sup, 2*time.Second) }()
	}
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-results; !werrors.HasCode(err, werrors.ErrCodeServiceFatal) {
			t.Errorf("waiter %d: expected SERVICE_FATAL, got %v", i, err)
		}
	}
}

func TestWithMaxCrashes_EscalatesForeverSlot(t *testing.T) {
	sup := newSupervisor(t, WithMaxCrashes(3))
	var built int32
	slot := sup.Spawn("poller", crashThenBlock(100, &built), nil)

	appErr := expectFatal(t, waitShort(sup, time.Second))
	if appErr.Cause == nil || !strings.Contains(appErr.Cause.Error(), "crashed 3 consecutive times") {
		t.Errorf("unexpected cause %v", appErr.Cause)
	}
	if slot.Constructions() != 3 {
		t.Errorf("expected 3 constructions, got %d", slot.Constructions())
	}
}

func TestWithMaxCrashes_CompletionResetsStreak(t *testing.T) {
	sup := newSupervisor(t, WithMaxCrashes(2))
	var built int32
	slot := sup.Spawn("alternating", func(ctx context.Context, _ deps, _ *reports.Sender) (service.Service, error) {
		iteration := atomic.AddInt32(&built, 1)
		return service.Func(func(ctx context.Context) error {
			switch {
			case iteration > 6:
				<-ctx.Done()
				return nil
			case iteration%2 == 1:
				return errors.New("odd run crashes")
			default:
				return nil
			}
		}), nil
	}, nil)

	waitFor(t, "seventh run", func() bool { return slot.Constructions() == 7 && slot.State() == StateRunning })
	expectStillRunning(t, sup, 20*time.Millisecond)
}

func TestWithRestartDelay(t *testing.T) {
	sup := newSupervisor(t, WithRestartDelay(40*time.Millisecond))
	var built int32
	slot := sup.Spawn("slow", crashThenBlock(100, &built), nil)

	time.Sleep(100 * time.Millisecond)
	if n := slot.Constructions(); n < 2 || n > 4 {
		t.Errorf("expected 2 to 4 constructions in 100ms, got %d", n)
	}
}

func TestShutdown_StopsSlotsWithoutFatal(t *testing.T) {
	sup := New(deps{}, WithLogger(logger.Nop()), WithRestartDelay(time.Hour))
	var built int32
	forever := sup.Spawn("poller", crashThenBlock(0, &built), nil)
	sleeping := sup.Spawn("sleeper", crashThenBlock(1, new(int32)), nil)
	_, rx := reports.NewChannel(1)
	receiver := sup.SpawnWithSharedReceiver("alert", func(ctx context.Context, _ deps, rx *reports.SharedReceiver) (service.Service, error) {
		return service.Func(func(ctx context.Context) error {
			_, err := rx.Recv(ctx)
			return err
		}), nil
	}, rx)

	waitFor(t, "all slots settled", func() bool {
		return forever.State() == StateRunning && receiver.State() == StateRunning && sleeping.Crashes() == 1
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sup.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, slot := range []*Slot{forever, sleeping, receiver} {
		select {
		case <-slot.Done():
		default:
			t.Fatalf("slot %s still running after Shutdown", slot.Name())
		}
		if slot.State() != StateTerminated {
			t.Errorf("slot %s: expected terminated, got %s", slot.Name(), slot.State())
		}
		if slot.Status().Escalated {
			t.Errorf("slot %s: shutdown must not escalate", slot.Name())
		}
	}
	if sup.Running() != 0 {
		t.Errorf("expected 0 running, got %d", sup.Running())
	}
	if err := sup.Wait(context.Background()); err != nil {
		t.Errorf("Wait after Shutdown: %v", err)
	}
}

func TestShutdown_RespectsDeadline(t *testing.T) {
	sup := New(deps{}, WithLogger(logger.Nop()))
	stuck := make(chan struct{})
	defer close(stuck)
	slot := sup.Spawn("stuck", func(ctx context.Context, _ deps, _ *reports.Sender) (service.Service, error) {
		return service.Func(func(context.Context) error { <-stuck; return nil }), nil
	}, nil)

	// The service ignores its context, so only a started run can hold Shutdown up.
	waitFor(t, "running", func() bool { return slot.State() == StateRunning })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sup.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSpawn_DepsAndSenderReachConstructor(t *testing.T) {
	sup := newSupervisor(t)
	tx, rx := reports.NewChannel(4)

	var once sync.Once
	sup.Spawn("reporter", func(ctx context.Context, d deps, errs *reports.Sender) (service.Service, error) {
		return service.Func(func(ctx context.Context) error {
			once.Do(func() { _ = errs.Reportf(ctx, "region %s degraded", d.Region) })
			<-ctx.Done()
			return nil
		}), nil
	}, tx)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := rx.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msg != "region eu degraded" {
		t.Errorf("unexpected report %q", msg)
	}
}

type describedService struct{}

func (describedService) Run(ctx context.Context) error { <-ctx.Done(); return nil }
func (describedService) Describe() string             { return "polls upstream prices" }

func TestSlots_Snapshot(t *testing.T) {
	sup := newSupervisor(t)
	first := sup.Spawn("prices", func(context.Context, deps, *reports.Sender) (service.Service, error) {
		return describedService{}, nil
	}, nil)
	sup.SpawnWithSharedReceiver("alert", func(context.Context, deps, *reports.SharedReceiver) (service.Service, error) {
		return describedService{}, nil
	}, nil)

	waitFor(t, "first slot running", func() bool { return first.State() == StateRunning })

	slots := sup.Slots()
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Name != "prices" || slots[0].ID != first.ID() {
		t.Errorf("unexpected first slot %+v", slots[0])
	}
	if slots[0].Description != "polls upstream prices" {
		t.Errorf("unexpected description %q", slots[0].Description)
	}
	if slots[1].Policy != "restart_until_report" {
		t.Errorf("unexpected policy %q", slots[1].Policy)
	}
	if slots[0].ID == slots[1].ID {
		t.Error("slot ids must be unique")
	}
	if sup.Running() != 2 {
		t.Errorf("expected 2 running, got %d", sup.Running())
	}
}

func TestCheckHealth(t *testing.T) {
	sup := newSupervisor(t, WithRestartDelay(time.Hour))
	if h := sup.CheckHealth(context.Background()); h.Status != observability.HealthStatusUp {
		t.Errorf("expected up with no slots, got %s", h.Status)
	}

	var built int32
	flaky := sup.Spawn("flaky", crashThenBlock(1, &built), nil)
	waitFor(t, "first crash", func() bool { return flaky.Crashes() == 1 })
	if h := sup.CheckHealth(context.Background()); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded during a crash streak, got %s", h.Status)
	}

	sup.SpawnWithSharedReceiver("alert", crashing("gone"), nil)
	if err := waitShort(sup, time.Second); err == nil {
		t.Fatal("expected a fatal exit")
	}

	h := sup.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusDown {
		t.Errorf("expected down, got %s", h.Status)
	}
	if !strings.Contains(h.Message, "alert") {
		t.Errorf("message should name the slot, got %q", h.Message)
	}
	if len(h.Details) != 2 {
		t.Errorf("expected 2 detail entries, got %v", h.Details)
	}
}

func TestMetrics_RestartsAndFailures(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	sup := newSupervisor(t, WithMetrics(m))
	var built int32
	slot := sup.Spawn("poller", crashThenBlock(2, &built), nil)
	waitFor(t, "third run", func() bool { return slot.Constructions() == 3 && slot.State() == StateRunning })

	sup.SpawnWithSharedReceiver("alert", crashing("gone"), nil)
	if err := waitShort(sup, time.Second); err == nil {
		t.Fatal("expected a fatal exit")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	crashed := attribute.NewSet(
		attribute.String(observability.AttrService, "poller"),
		attribute.String(observability.AttrPolicy, "restart_forever"),
		attribute.String(observability.AttrOutcome, "crashed"),
	)
	var restarts, failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch {
				case md.Name == "supervisor.slot.restarts" && dp.Attributes.Equals(&crashed):
					restarts += dp.Value
				case md.Name == "supervisor.slot.failures":
					failures += dp.Value
				}
			}
		}
	}
	if restarts != 2 {
		t.Errorf("expected 2 crash restarts, got %d", restarts)
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestPolicyAndStateStrings(t *testing.T) {
	policies := map[Policy]string{
		PolicyRestartForever:     "restart_forever",
		PolicyRestartUntilReport: "restart_until_report",
		Policy(9):                "unknown",
	}
	for p, want := range policies {
		if got := p.String(); got != want {
			t.Errorf("Policy(%d).String() = %q, want %q", int(p), got, want)
		}
	}

	states := map[State]string{
		StateConstructing: "constructing",
		StateRunning:      "running",
		StateCrashed:      "crashed",
		StateCompleted:    "completed",
		StateReported:     "reported",
		StateTerminated:   "terminated",
		State(42):         "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{RestartDelay: time.Second, MaxCrashes: 5}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := Config{MaxCrashes: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative MaxCrashes")
	}

	sup := New(deps{}, WithConfig(cfg))
	if sup.opts.restartDelay != time.Second || sup.opts.maxCrashes != 5 {
		t.Errorf("config not applied: delay %v max %d", sup.opts.restartDelay, sup.opts.maxCrashes)
	}
}
