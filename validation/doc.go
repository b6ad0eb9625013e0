// Package validation validates warden configuration structs using
// go-playground/validator struct tags. Failures are returned as
// *errors.AppError with code INVALID_INPUT and a per-field breakdown in
// Details["fields"].
package validation
