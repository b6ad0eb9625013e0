// Package errors provides the unified error type used across warden.
//
// AppError carries a machine-readable code, a retryable flag and an
// optional cause. The code table covers the toolkit's failure taxonomy:
// transient availability failures, terminal failures, exhausted retries
// and fatal supervised-service terminations.
package errors
