// Package util contains small building blocks shared by the lib packages.
//
// LockFreeMPSC is a lock-free Multi-Producer Single-Consumer queue:
//
//   - Lock-Free: atomic operations for high throughput and low latency even under high contention
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Thread-Safe writes: Allows any number of goroutines to safely Push() concurrently
//   - Single Consumer: Pop() and Drain() must only be called by one goroutine at a time.
//     There is no background goroutine, the consumer polls whenever it is ready to handle items.
//   - No Strict FIFO Guarantee: Under concurrent Push() operations, the exact ordering of items
//     is determined by which producer completes its operation first, not by which producer
//     started first. Items pushed by a single producer are popped in push order.
//
// HashString is a seeded FNV-1a string hash.
package util
