// Package queue implements the outbound message queue of publishing sockets.
//
// Messages sent before a socket can reach any peer are buffered here in FIFO
// order. The queue is bounded by a high-water-mark: once it holds that many
// messages further ones are dropped and reported through the drop callback.
// A flush atomically swaps the buffer for an empty one before sending, so
// messages enqueued concurrently with a flush land in the next batch and are
// never lost or reordered within a batch.
package queue
