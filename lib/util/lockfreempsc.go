package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue
// Implementation uses a linked list of nodes with atomic operations
// for concurrent push operations without locks
type LockFreeMPSC[T interface{}] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
}

// NewLockFreeMPSC creates a new lock-free multi-producer single-consumer queue
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{}

	// Set the initial head and tail to the sentinel node
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push adds an item to the queue.
// Returns false for a nil item, which is never queued.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {

	if value == nil {
		return false
	}

	newNode := &node[T]{value: value}

	var tailNode *node[T]
	var backoff uint8 = 0

	for {
		tailNode = q.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			// the tail has no next node yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				/*
				 Successfully appended, now try to update tail
				 Note: CAS may fail if another producer helps update tail,
				 but that's okay - tail will still be updated eventually
				*/
				q.tail.CompareAndSwap(tailNode, newNode)
				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node but hasn't updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Pop removes the oldest item from the queue. It returns false if the queue is empty.
//
// Thread-safety: Only a single goroutine may call Pop at a time.
func (q *LockFreeMPSC[T]) Pop() (*T, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}

	// Capture value before updating pointers
	value := next.value

	// move head pointer (free up memory)
	q.head.Store(next)
	next.value = nil

	return value, true
}

// Drain pops all items currently in the queue and passes them to fn in order.
// It returns the number of items handled.
//
// Thread-safety: Same as Pop.
func (q *LockFreeMPSC[T]) Drain(fn func(*T)) int {
	n := 0
	for {
		value, ok := q.Pop()
		if !ok {
			return n
		}
		fn(value)
		n++
	}
}

// Len returns an approximate count of the number of items in the queue.
// This is O(n), it is meant for metrics and debugging.
//
// Thread-safety: Can be called concurrently with Push and Pop.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	current := q.head.Load()

	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}

	return count
}
