package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New(10, DropOldest)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := q.Push(ctx, Item{ConnectionID: "c1", Payload: []byte{byte(i)}})
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if q.Depth() != 5 {
		t.Errorf("expected depth 5, got %d", q.Depth())
	}

	for i := 0; i < 5; i++ {
		it, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if it.Payload[0] != byte(i) {
			t.Errorf("expected item %d, got %d", i, it.Payload[0])
		}
		if it.EnqueuedAt.IsZero() {
			t.Error("expected EnqueuedAt to be stamped")
		}
	}
}

func TestPushDropOldestOnOverflow(t *testing.T) {
	q := New(2, DropOldest)
	q.pushWait = time.Millisecond
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := q.Push(ctx, Item{Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if q.Drops() != 2 {
		t.Errorf("expected 2 drops, got %d", q.Drops())
	}
	if q.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", q.Depth())
	}

	// The two oldest were evicted.
	first, _ := q.Pop(ctx)
	second, _ := q.Pop(ctx)
	if first.Payload[0] != 2 || second.Payload[0] != 3 {
		t.Errorf("expected items 2 and 3 to survive, got %d and %d", first.Payload[0], second.Payload[0])
	}
}

func TestPushBlockPolicyHonorsContext(t *testing.T) {
	q := New(1, Block)
	ctx := context.Background()

	if err := q.Push(ctx, Item{Payload: []byte("a")}); err != nil {
		t.Fatalf("push: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Push(cancelCtx, Item{Payload: []byte("b")})
	}()

	select {
	case err := <-errCh:
		t.Fatalf("push should have blocked, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after cancel")
	}

	if q.Drops() != 0 {
		t.Errorf("block policy must not drop, got %d drops", q.Drops())
	}
}

func TestPopHonorsContext(t *testing.T) {
	q := New(1, DropOldest)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers = 4
	const perProducer = 200

	q := New(producers*perProducer, DropOldest)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", p)
			for i := 0; i < perProducer; i++ {
				if err := q.Push(ctx, Item{ConnectionID: conn, Payload: []byte{byte(i)}}); err != nil {
					t.Errorf("push: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	if q.Depth() != producers*perProducer {
		t.Fatalf("expected depth %d, got %d", producers*perProducer, q.Depth())
	}

	lastSeen := map[string]int{}
	for i := 0; i < producers*perProducer; i++ {
		it, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		seq := int(it.Payload[0])
		if last, ok := lastSeen[it.ConnectionID]; ok && seq <= last {
			t.Fatalf("order violated for %s: %d after %d", it.ConnectionID, seq, last)
		}
		lastSeen[it.ConnectionID] = seq
	}
}
