// Package batch drives recipients of a campaign through the personalization
// engine one at a time, persisting each recipient's status transitions and
// reporting progress to the caller.
//
// Rules:
//   - Recipients are processed strictly in input order, never in parallel.
//   - Stop and pause take effect only between recipients; an in-flight
//     recipient always finishes.
//   - One recipient's failure never aborts the batch. ProcessBatch returns
//     one result per attempted recipient, in input order.
//   - A failed attempt is charged nothing. A successful attempt is charged the
//     requested tier's fixed cost.
//
// Manager wraps Processor for callers that need at most one active batch per
// campaign across processes.
package batch
