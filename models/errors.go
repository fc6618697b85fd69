package models

import "fmt"

// The pipeline surfaces failures as typed errors so callers can branch on
// cause (retry, re-scrape, reject input) without matching message strings.

// ValidationError marks a malformed record or query device.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientDataError means fewer fresh matching listings exist than the
// minimum the trainer needs. Callers are expected to trigger a scrape for
// the model and retry later.
type InsufficientDataError struct {
	Model    string
	Found    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("only %d fresh listings found for %q, minimum %d required", e.Found, e.Model, e.Required)
}

// ImputationError means no record in the training set carries a well-formed
// ram/storage pair, so missing capacities cannot be filled in.
type ImputationError struct {
	Model string
}

func (e *ImputationError) Error() string {
	return fmt.Sprintf("no usable ram/storage fallback in training data for %q", e.Model)
}

// ModelFitError means no usable rows remained once unpriced records were
// dropped.
type ModelFitError struct {
	Reason string
}

func (e *ModelFitError) Error() string {
	return "model fit failed: " + e.Reason
}
