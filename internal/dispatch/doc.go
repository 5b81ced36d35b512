// Package dispatch runs one task per record through a fixed-size worker pool.
//
// A Dispatcher owns exactly Options.Workers goroutines for the duration of a
// single Run. Tasks are fed through a bounded queue in load order; workers
// report an outcome per task and the dispatcher drains those outcomes on the
// calling goroutine, which makes it the only writer of the Result and the
// only party that fires the completion event.
//
// Key properties:
//   - At most Workers processor calls are in flight at any time
//   - A failing task never stops the batch; it is recorded as a Failure
//   - The completion event fires exactly once, after the last outcome
//   - A Dispatcher is single-use; a second Run returns ErrPoolClosed
package dispatch
