// Package nserrors defines the shared error taxonomy used across the
// statistical core: sentinel values callers can match with errors.Is,
// wrapped with package-specific context via fmt.Errorf("%w", ...).
package nserrors

import "errors"

var (
	// ErrInvalidDimension is returned when a vector or matrix's dimension
	// disagrees with the model dimension it is being used against.
	ErrInvalidDimension = errors.New("nexussynth: invalid dimension")

	// ErrInvalidParameter is returned for a negative weight or variance, a
	// non-finite input, or a zero-length sequence where one is required.
	ErrInvalidParameter = errors.New("nexussynth: invalid parameter")

	// ErrNumericalFailure is returned when both Cholesky and LU solves fail,
	// k-means cannot form a single cluster, or EM diverges to a non-finite
	// likelihood.
	ErrNumericalFailure = errors.New("nexussynth: numerical failure")

	// ErrMissingModel is returned when synthesis requests a context whose
	// model is absent from the trained set.
	ErrMissingModel = errors.New("nexussynth: missing model")

	// ErrSerialization is returned when encoding or decoding a persisted
	// artifact (statistics, model bundle, label file) fails.
	ErrSerialization = errors.New("nexussynth: serialization failure")
)
