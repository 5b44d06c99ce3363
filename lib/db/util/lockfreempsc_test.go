package util

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

type testTicket struct {
	stamp float64
	key   string
}

// TestPushPop tests basic push and pop functionality
func TestPushPop(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	if q.Len() != 10 {
		t.Errorf("Expected length 10, got %d", q.Len())
	}

	for i := 0; i < 10; i++ {
		val, ok := q.Pop()
		if !ok {
			t.Fatalf("Expected item %d, queue was empty", i)
		}
		if val != i {
			t.Errorf("Expected %d, got %d", i, val)
		}
	}

	if val, ok := q.Pop(); ok {
		t.Errorf("Queue should be empty, but got %v", val)
	}
	if q.Len() != 0 {
		t.Errorf("Expected length 0, got %d", q.Len())
	}
}

// TestStructValues verifies that value types survive the queue unchanged
func TestStructValues(t *testing.T) {
	q := NewLockFreeMPSC[testTicket]()

	q.Push(testTicket{stamp: 1.5, key: "a"})
	q.Push(testTicket{stamp: 2.5, key: "b"})

	first, _ := q.Pop()
	second, _ := q.Pop()

	if first.key != "a" || first.stamp != 1.5 {
		t.Errorf("Unexpected first ticket %+v", first)
	}
	if second.key != "b" || second.stamp != 2.5 {
		t.Errorf("Unexpected second ticket %+v", second)
	}
}

// TestNotify verifies that a push wakes a waiting consumer
func TestNotify(t *testing.T) {
	q := NewLockFreeMPSC[string]()
	defer q.Close()

	select {
	case <-q.Notify():
		t.Fatal("Notify should not fire on an empty queue")
	default:
	}

	done := make(chan string)
	go func() {
		for {
			if val, ok := q.Pop(); ok {
				done <- val
				return
			}
			<-q.Notify()
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push("test")

	select {
	case val := <-done:
		if val != "test" {
			t.Errorf("Expected 'test', got %v", val)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for consumer to be notified")
	}
}

// TestConcurrentProducers verifies the queue works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	var wg sync.WaitGroup
	wg.Add(numProducers)

	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()

			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				if !q.Push(base + i) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	received := make(map[int]bool, totalItems)
	lastPerProducer := make(map[int]int, numProducers)
	deadline := time.After(5 * time.Second)

	for len(received) < totalItems {
		val, ok := q.Pop()
		if !ok {
			select {
			case <-q.Notify():
			case <-deadline:
				t.Fatalf("Timeout waiting for items, received %d of %d", len(received), totalItems)
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if received[val] {
			t.Errorf("Duplicate item received: %d", val)
		}
		received[val] = true

		// items of one producer keep their push order
		producer := val / itemsPerProducer
		if last, seen := lastPerProducer[producer]; seen && val < last {
			t.Errorf("Producer %d items out of order: %d after %d", producer, val, last)
		}
		lastPerProducer[producer] = val
	}

	wg.Wait()

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got length %d", q.Len())
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	q.Close()

	if !q.IsClosed() {
		t.Error("Queue should report closed")
	}
	if q.Push(100) {
		t.Error("Should not be able to push after queue is closed")
	}

	// existing items are still readable
	for i := 0; i < 5; i++ {
		val, ok := q.Pop()
		if !ok || val != i {
			t.Errorf("Expected %d after close, got %v (ok=%v)", i, val, ok)
		}
	}
}

// BenchmarkSingleProducer benchmarks the queue with a single producer
func BenchmarkSingleProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(i)
		q.Pop()
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(i)
			i++
		}
	})
}
