package bus

import (
	"context"
	"testing"
	"time"
)

func TestPushPopRoundTrip(t *testing.T) {
	q := NewQueue[int](2, OverflowDropOldest)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := q.Pop(ctx)
	if err != nil || got != 1 {
		t.Fatalf("got %d err=%v want 1", got, err)
	}
}

func TestDropOldestDiscardsOnlyTheOldest(t *testing.T) {
	q := NewQueue[int](2, OverflowDropOldest)
	ctx := context.Background()
	q.Push(ctx, 1)
	q.Push(ctx, 2)
	q.Push(ctx, 3) // should drop 1, keep 2,3

	first, _ := q.Pop(ctx)
	second, _ := q.Pop(ctx)
	if first != 2 || second != 3 {
		t.Fatalf("got %d,%d want 2,3", first, second)
	}
}

func TestReplaceDiscardsEverythingBuffered(t *testing.T) {
	q := NewQueue[int](3, OverflowReplace)
	ctx := context.Background()
	q.Push(ctx, 1)
	q.Push(ctx, 2)
	q.Push(ctx, 3) // queue now full at bound 3
	q.Push(ctx, 4) // replace: drop 1,2,3 and keep only 4

	if q.Len() != 1 {
		t.Fatalf("expected exactly one queued item after replace, got %d", q.Len())
	}
	got, _ := q.Pop(ctx)
	if got != 4 {
		t.Fatalf("got %d want 4", got)
	}
}

func TestBlockPushRespectsContextCancellation(t *testing.T) {
	q := NewQueue[int](1, OverflowBlock)
	ctx := context.Background()
	if err := q.Push(ctx, 1); err != nil {
		t.Fatalf("push: %v", err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(cctx, 2); err == nil {
		t.Fatalf("expected push to a full blocking queue to observe cancellation")
	}
}

func TestPopRespectsContextCancellation(t *testing.T) {
	q := NewQueue[int](1, OverflowBlock)
	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(cctx); err == nil {
		t.Fatalf("expected pop from an empty queue to observe cancellation")
	}
}

func TestNewBusWiresAllQueues(t *testing.T) {
	b := New()
	if b.AudioIn == nil || b.TextIn == nil || b.AprsIn == nil || b.Ctrl == nil || b.Keys == nil {
		t.Fatalf("expected all inbound queues to be wired")
	}
	if b.AudioOut == nil || b.TextOut == nil || b.AprsOut == nil || b.StatusOut == nil {
		t.Fatalf("expected all outbound queues to be wired")
	}
}
