package reports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func mustSend(t *testing.T, tx *Sender, msg string) {
	t.Helper()
	if err := tx.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send(%q): %v", msg, err)
	}
}

func mustRecv(t *testing.T, rx *SharedReceiver, want string) {
	t.Helper()
	got, err := rx.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestChannel_FIFOPerSender(t *testing.T) {
	tx, rx := NewChannel(10)
	for i := 0; i < 5; i++ {
		mustSend(t, tx, fmt.Sprintf("m%d", i))
	}
	for i := 0; i < 5; i++ {
		mustRecv(t, rx, fmt.Sprintf("m%d", i))
	}
}

func TestChannel_DefaultCapacity(t *testing.T) {
	tx, _ := NewChannel(0)
	for i := 0; i < DefaultCapacity; i++ {
		mustSend(t, tx, "x")
	}
	if tx.Len() != DefaultCapacity {
		t.Errorf("expected %d buffered, got %d", DefaultCapacity, tx.Len())
	}

	full, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tx.Send(full, "overflow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded on a full channel, got %v", err)
	}
}

func TestSend_BlocksUntilSpace(t *testing.T) {
	tx, rx := NewChannel(1)
	mustSend(t, tx, "first")

	sent := make(chan error, 1)
	go func() { sent <- tx.Send(context.Background(), "second") }()

	select {
	case <-sent:
		t.Fatal("send should block while the buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	mustRecv(t, rx, "first")
	if err := <-sent; err != nil {
		t.Fatalf("blocked send: %v", err)
	}
	mustRecv(t, rx, "second")
}

func TestRecv_RespectsContext(t *testing.T) {
	_, rx := NewChannel(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := rx.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestClose_DrainsThenErrClosed(t *testing.T) {
	tx, rx := NewChannel(4)
	mustSend(t, tx, "pending")
	tx.Close()
	tx.Close()

	if err := tx.Send(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	mustRecv(t, rx, "pending")
	if _, err := rx.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed once drained, got %v", err)
	}
}

func TestClose_WakesBlockedReceiver(t *testing.T) {
	tx, rx := NewChannel(1)
	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tx.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}
}

func TestSharedReceiver_ExclusiveHold(t *testing.T) {
	_, rx := NewChannel(1)

	// A blocked Recv keeps the hold, so TryRecv cannot take it.
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = rx.Recv(ctx)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	if _, ok := rx.TryRecv(); ok {
		t.Error("TryRecv should fail while Recv holds the receiver")
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for !rx.hold.TryAcquire(1) {
		if time.Now().After(deadline) {
			t.Fatal("hold should be released once Recv returns")
		}
		time.Sleep(5 * time.Millisecond)
	}
	rx.hold.Release(1)
}

func TestChannel_ConcurrentSendersSingleDrainer(t *testing.T) {
	tx, rx := NewChannel(8)
	ctx := context.Background()

	const senders, perSender = 4, 50
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_ = tx.Reportf(ctx, "%d:%d", s, i)
			}
		}(s)
	}

	last := make(map[int]int)
	for n := 0; n < senders*perSender; n++ {
		msg, err := rx.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		var s, i int
		if _, err := fmt.Sscanf(msg, "%d:%d", &s, &i); err != nil {
			t.Fatalf("malformed report %q: %v", msg, err)
		}
		if prev, ok := last[s]; ok && i <= prev {
			t.Errorf("sender %d out of order: %d after %d", s, i, prev)
		}
		last[s] = i
	}
	wg.Wait()
	if len(last) != senders {
		t.Errorf("expected reports from %d senders, got %d", senders, len(last))
	}
}

func TestNilSender_FailsLoudly(t *testing.T) {
	var tx *Sender
	if err := tx.Send(context.Background(), "lost"); !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}
	if err := tx.Reportf(context.Background(), "lost %d", 1); !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel from Reportf, got %v", err)
	}
	if tx.Len() != 0 {
		t.Errorf("expected 0 buffered, got %d", tx.Len())
	}
	tx.Close()
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Capacity != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, cfg.Capacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := Config{Capacity: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative capacity")
	}

	tx, _ := NewChannelFromConfig(Config{Capacity: 3})
	for i := 0; i < 3; i++ {
		mustSend(t, tx, "x")
	}
	if tx.Len() != 3 {
		t.Errorf("expected 3 buffered, got %d", tx.Len())
	}
}
