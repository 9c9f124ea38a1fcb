package fancontrol

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLock struct {
	closeCalls atomic.Int64
	err        error
}

func (l *fakeLock) Close() error {
	l.closeCalls.Add(1)
	return l.err
}

func TestAcquireOwnership_TakesAndReleasesOnce(t *testing.T) {
	act := &fakeActuator{}
	lock := &fakeLock{}
	own, err := AcquireOwnership(NewGateway(act, false), lock)
	if err != nil {
		t.Fatalf("AcquireOwnership: %v", err)
	}
	if own.State() != Owned {
		t.Fatalf("state=%s want owned", own.State())
	}
	if act.takeCalls.Load() != 1 {
		t.Fatalf("take calls=%d want 1", act.takeCalls.Load())
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := own.Release(); err != nil {
				t.Errorf("Release: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := act.releaseCalls.Load(); n != 1 {
		t.Fatalf("release calls=%d want 1", n)
	}
	if n := lock.closeCalls.Load(); n != 1 {
		t.Fatalf("lock close calls=%d want 1", n)
	}
	if own.State() != NotOwned {
		t.Fatalf("state=%s want not-owned", own.State())
	}
}

func TestAcquireOwnership_FailureClosesLock(t *testing.T) {
	act := &fakeActuator{takeErr: errors.New("EPERM")}
	lock := &fakeLock{}
	own, err := AcquireOwnership(NewGateway(act, false), lock)
	if !errors.Is(err, ErrOwnership) {
		t.Fatalf("err=%v want ErrOwnership", err)
	}
	if own != nil {
		t.Fatalf("expected no guard on failure")
	}
	if lock.closeCalls.Load() != 1 {
		t.Fatalf("lock must be removed when takeover fails")
	}
	if act.releaseCalls.Load() != 0 {
		t.Fatalf("nothing to release after a failed takeover")
	}
}

func TestAcquireOwnership_DryRunNeverTouchesActuator(t *testing.T) {
	act := &fakeActuator{}
	lock := &fakeLock{}
	own, err := AcquireOwnership(NewGateway(act, true), lock)
	if err != nil {
		t.Fatalf("AcquireOwnership: %v", err)
	}
	if own.State() != NotOwned {
		t.Fatalf("state=%s want not-owned", own.State())
	}
	if err := own.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := own.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if act.takeCalls.Load() != 0 || act.releaseCalls.Load() != 0 || act.setCalls.Load() != 0 {
		t.Fatalf("dry-run touched the actuator: take=%d release=%d set=%d",
			act.takeCalls.Load(), act.releaseCalls.Load(), act.setCalls.Load())
	}
	if lock.closeCalls.Load() != 1 {
		t.Fatalf("lock close calls=%d want 1", lock.closeCalls.Load())
	}
}

func TestRelease_FailureStillRemovesLock(t *testing.T) {
	act := &fakeActuator{releaseErr: errors.New("EIO")}
	lock := &fakeLock{}
	own, err := AcquireOwnership(NewGateway(act, false), lock)
	if err != nil {
		t.Fatalf("AcquireOwnership: %v", err)
	}
	err = own.Release()
	if !errors.Is(err, ErrOwnership) {
		t.Fatalf("err=%v want ErrOwnership", err)
	}
	if lock.closeCalls.Load() != 1 {
		t.Fatalf("lock must be removed even when release fails")
	}
	// Later calls report the same failure without retrying.
	if err2 := own.Release(); err2 == nil || act.releaseCalls.Load() != 1 {
		t.Fatalf("second Release err=%v calls=%d", err2, act.releaseCalls.Load())
	}
}

func TestRelease_NilGuard(t *testing.T) {
	var own *Ownership
	if err := own.Release(); err != nil {
		t.Fatalf("Release on nil guard: %v", err)
	}
}

// runWithGuard mirrors how the daemon brackets the loop.
func runWithGuard(ctx context.Context, svc *Service, own *Ownership) (err error) {
	defer func() {
		if rerr := own.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return svc.Run(ctx)
}

func TestLifecycle_ReleaseOnceAfterTermination(t *testing.T) {
	stubAfter(t, func(time.Duration) <-chan time.Time { return make(chan time.Time) })

	act := &fakeActuator{}
	gw := NewGateway(act, false)
	own, err := AcquireOwnership(gw, nil)
	if err != nil {
		t.Fatalf("AcquireOwnership: %v", err)
	}
	svc := New(Config{}, []Sensor{&scriptSensor{name: "cpu0", temp: celsius(47)}}, gw, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWithGuard(ctx, svc, own) }()

	deadline := time.Now().Add(time.Second)
	for svc.Snapshot().Cycles == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first cycle did not run")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := act.releaseCalls.Load(); n != 1 {
		t.Fatalf("release calls=%d want 1", n)
	}
}

func TestLifecycle_ReleaseOnceAfterFatalError(t *testing.T) {
	stubAfter(t, func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	})

	act := &fakeActuator{}
	gw := NewGateway(act, false)
	own, err := AcquireOwnership(gw, nil)
	if err != nil {
		t.Fatalf("AcquireOwnership: %v", err)
	}
	bad := &scriptSensor{name: "cpu1", err: errors.New("ENXIO")}
	svc := New(Config{}, []Sensor{bad}, gw, nil)

	err = runWithGuard(context.Background(), svc, own)
	if !errors.Is(err, ErrSensorRead) {
		t.Fatalf("err=%v want ErrSensorRead", err)
	}
	if n := act.releaseCalls.Load(); n != 1 {
		t.Fatalf("release calls=%d want 1", n)
	}
	// The finalizer may fire again from another exit path.
	_ = own.Release()
	if n := act.releaseCalls.Load(); n != 1 {
		t.Fatalf("release calls=%d want 1", n)
	}
}
