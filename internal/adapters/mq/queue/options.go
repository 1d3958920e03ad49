package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithDropHandler sets the callback for jobs lost when a consumer's
// context ends mid hand-off and the queue cannot take them back.
func WithDropHandler(fn func(Job)) Option {
	return func(q *InMemoryQueue) {
		q.onDrop = fn
	}
}
