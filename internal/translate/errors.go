package translate

import "fmt"

// DiffParseError means the input was not valid unified-diff text.
type DiffParseError struct {
	Err error
}

func (e *DiffParseError) Error() string {
	return fmt.Sprintf("parsing diff: %v", e.Err)
}

func (e *DiffParseError) Unwrap() error {
	return e.Err
}

// RecordParseError means a changed line was not a well-formed index record.
// The run that produced the diff aborts without advancing its checkpoint.
type RecordParseError struct {
	Line string
	Err  error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("parsing record %q: %v", e.Line, e.Err)
}

func (e *RecordParseError) Unwrap() error {
	return e.Err
}
