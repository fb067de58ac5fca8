// Package errors provides structured error types for the alkahest codec.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, the formula involved, the offending value
// and an optional cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
//		Path("user", "name").
//		Formula("Ref<Str>").
//		Detail("reference end %d past input length %d", end, n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 10, 5)
//	err := errors.InvalidDiscriminant(errors.PhaseDecode, path, 7, 2)
//
// Errors compare with errors.Is by phase and kind, so the exported sentinels
// (ErrOutOfBounds, ErrBufferTooSmall, ...) can be used as targets.
package errors
