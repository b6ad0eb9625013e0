// Package reports is the error-report channel shared by supervised
// services: a bounded multi-producer queue of plain-text reports whose
// single consumer side is held exclusively while a report is taken.
//
// Senders block when the buffer is full; per-sender order is FIFO.
package reports
