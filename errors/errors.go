package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNoProductName indicates no product mention could be extracted from the query
	ErrNoProductName = errors.New("no product name in query")

	// ErrProductNotFound indicates a product mention resolved to no catalog entry
	ErrProductNotFound = errors.New("product not found")

	// ErrNoClausesFound indicates retrieval returned zero passages for a resolved product
	ErrNoClausesFound = errors.New("no related clauses found")

	// ErrLLMCommunication indicates an LLM or embedding call failed after retries
	ErrLLMCommunication = errors.New("llm communication failed")

	// ErrSearchUnavailable indicates the search engine could not be reached
	ErrSearchUnavailable = errors.New("search engine unavailable")
)

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNoClausesFound checks if error is a retrieval-empty error
func IsNoClausesFound(err error) bool {
	return errors.Is(err, ErrNoClausesFound)
}

// IsProductNotFound checks if error is an entity-resolution error
func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrNoProductName)
}

// IsLLMCommunication checks if error is an upstream LLM failure
func IsLLMCommunication(err error) bool {
	return errors.Is(err, ErrLLMCommunication)
}
