package indexer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
)

func TestCoordinate_SecondCallForSameKeyIsRefusedWhileRunning(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.Coordinate(context.Background(), Request{
			Key: "k",
			Task: func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			},
		})
	}()
	<-started

	status, err := c.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error { return nil }})
	if status != StatusFailed || !chainerr.Is(err, chainerr.IndexerBusy) {
		t.Errorf("status = %v, err = %v, want StatusFailed/IndexerBusy", status, err)
	}
	close(release)

	if err := c.WaitForCompletion(time.Second); err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
}

func TestCoordinate_CanWaitBlocksInsteadOfFailing(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.Coordinate(context.Background(), Request{
			Key: "k",
			Task: func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			},
		})
	}()
	<-started

	done := make(chan Status, 1)
	go func() {
		status, err := c.Coordinate(context.Background(), Request{Key: "k", CanWait: true, Task: func(ctx context.Context) error { return nil }})
		if err != nil {
			t.Errorf("Coordinate with CanWait: %v", err)
		}
		done <- status
	}()

	select {
	case <-done:
		t.Fatal("CanWait call returned before the first task released its slot")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	select {
	case status := <-done:
		if status != StatusCompleted {
			t.Errorf("status = %v, want StatusCompleted", status)
		}
	case <-time.After(time.Second):
		t.Fatal("CanWait call never completed after the slot freed up")
	}
}

func TestCoordinate_DifferentKeysRunConcurrently(t *testing.T) {
	c := New()
	var running int32
	var sawConcurrent int32
	done := make(chan struct{}, 2)

	task := func(ctx context.Context) error {
		n := atomic.AddInt32(&running, 1)
		if n > 1 {
			atomic.StoreInt32(&sawConcurrent, 1)
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		done <- struct{}{}
		return nil
	}

	go func() { _, _ = c.Coordinate(context.Background(), Request{Key: "a", Task: task}) }()
	go func() { _, _ = c.Coordinate(context.Background(), Request{Key: "b", Task: task}) }()
	<-done
	<-done

	if atomic.LoadInt32(&sawConcurrent) == 0 {
		t.Error("expected tasks for distinct keys to overlap")
	}
}

func TestCoordinate_RefusesNewWorkAfterShutdownWithCancelled(t *testing.T) {
	c := New()
	c.Shutdown()

	status, err := c.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error { return nil }})
	if status != StatusCancelled || !chainerr.Is(err, chainerr.IndexerCancelled) {
		t.Errorf("status = %v, err = %v, want StatusCancelled/IndexerCancelled", status, err)
	}
}

func TestCoordinate_BusyAndCancelledAreDistinctKinds(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = c.Coordinate(context.Background(), Request{
			Key: "k",
			Task: func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			},
		})
	}()
	<-started
	_, busyErr := c.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error { return nil }})
	close(release)
	_, _ = c.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error { return nil }})

	c2 := New()
	c2.Shutdown()
	_, cancelledErr := c2.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error { return nil }})

	if chainerr.Is(busyErr, chainerr.IndexerCancelled) || !chainerr.Is(busyErr, chainerr.IndexerBusy) {
		t.Errorf("busy error = %v, want IndexerBusy only", busyErr)
	}
	if chainerr.Is(cancelledErr, chainerr.IndexerBusy) || !chainerr.Is(cancelledErr, chainerr.IndexerCancelled) {
		t.Errorf("shutdown error = %v, want IndexerCancelled only", cancelledErr)
	}
}

func TestCoordinate_TestModeSkipsUnlessForced(t *testing.T) {
	c := New()
	c.SetTestMode(true)

	var ran int32
	status, err := c.Coordinate(context.Background(), Request{Key: "k", Task: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}})
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if status != StatusSkipped {
		t.Errorf("status = %v, want StatusSkipped while test mode is on", status)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("task ran despite test mode being on")
	}

	status, err = c.Coordinate(context.Background(), Request{Key: "k", ForceExecution: true, Task: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}})
	if err != nil {
		t.Fatalf("Coordinate with ForceExecution: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("status = %v, want StatusCompleted with ForceExecution set", status)
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Errorf("ran = %d, want 1 after ForceExecution bypassed test mode", ran)
	}
}

func TestCoordinate_MinIntervalSkipsRecentRun(t *testing.T) {
	c := New()
	run := func(ctx context.Context) error { return nil }

	status, err := c.Coordinate(context.Background(), Request{Key: "k", MinInterval: time.Hour, Task: run})
	if err != nil || status != StatusCompleted {
		t.Fatalf("first Coordinate: status=%v err=%v", status, err)
	}

	status, err = c.Coordinate(context.Background(), Request{Key: "k", MinInterval: time.Hour, Task: run})
	if err != nil {
		t.Fatalf("second Coordinate: %v", err)
	}
	if status != StatusSkipped {
		t.Errorf("status = %v, want StatusSkipped within MinInterval", status)
	}

	status, err = c.Coordinate(context.Background(), Request{Key: "k", MinInterval: time.Hour, ForceRebuild: true, Task: run})
	if err != nil || status != StatusCompleted {
		t.Errorf("ForceRebuild: status=%v err=%v, want StatusCompleted", status, err)
	}
}
