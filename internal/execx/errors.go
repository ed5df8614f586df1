package execx

import "fmt"

// LaunchError means the command could not be started at all: the program was
// not found, the working directory is missing, or the spawn itself failed.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError means the command ran and exited nonzero. Run never returns it;
// it is produced by callers (and Output) that treat nonzero exit as failure.
type ExitError struct {
	Program string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}
