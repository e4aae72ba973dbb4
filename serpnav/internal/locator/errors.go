package locator

import (
	"errors"
	"fmt"
)

// ErrNotReady means the page has no result container yet. It is
// recoverable: the caller retries later.
var ErrNotReady = errors.New("locator: result container not ready")

// PatternError records one rule that failed during a scan. The failure is
// isolated: the rule contributes nothing and the scan continues.
type PatternError struct {
	Rule     string
	Selector string
	Cause    error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("locator: rule %s (%s) failed: %v", e.Rule, e.Selector, e.Cause)
}

func (e *PatternError) Unwrap() error { return e.Cause }
