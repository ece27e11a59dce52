package collector

import "fmt"

// SourceError is a failed fetch or parse of one source.
type SourceError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
