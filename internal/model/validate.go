package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrValidation is matched by every *ValidationError via errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationError reports a single invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets callers use errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NormalizeTitle trims surrounding whitespace from a title
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks a title after normalization
func ValidateTitle(title string) error {
	if title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("must be at most %d characters", MaxTitleLength),
		}
	}
	return nil
}

// ValidateDescription checks the optional description
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("must be at most %d characters", MaxDescriptionLength),
		}
	}
	return nil
}

// ValidateEstimate checks the estimate in minutes
func ValidateEstimate(minutes int) error {
	if minutes < MinEstimate || minutes > MaxEstimate {
		return &ValidationError{
			Field:   "estimatedTime",
			Message: fmt.Sprintf("must be between %d and %d minutes", MinEstimate, MaxEstimate),
		}
	}
	return nil
}

// ValidateNew checks the user supplied fields of a new task.
// The title is expected to be normalized already.
func ValidateNew(title, description string, estimate int) error {
	if err := ValidateTitle(title); err != nil {
		return err
	}
	if err := ValidateDescription(description); err != nil {
		return err
	}
	return ValidateEstimate(estimate)
}

// Validate checks the editable fields of an existing task
func (t *Task) Validate() error {
	return ValidateNew(t.Title, t.Description, t.EstimatedTime)
}
