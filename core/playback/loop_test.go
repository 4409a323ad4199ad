package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	// posting from inside the loop must not deadlock
	loop.Post(func() {
		loop.Post(func() { got = append(got, 99) })
	})

	go loop.Run(ctx)
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}

	want := []int{0, 1, 2, 3, 4, 99}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLoopSerializesConcurrentPosts(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Do(ctx, func() { counter++ })
		}()
	}
	wg.Wait()

	var final int
	loop.Do(ctx, func() { final = counter })
	if final != 50 {
		t.Fatalf("counter = %d, want 50", final)
	}
}

func TestLoopClosed(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	if loop.Post(func() {}) {
		t.Fatal("post accepted after close")
	}
	if err := loop.Do(context.Background(), func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Fatalf("Do after close: %v", err)
	}
}
