package pipeline

import "errors"

// Stage names a pipeline step.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageFetch     Stage = "fetch"
	StageUnpack    Stage = "unpack"
	StageSerialize Stage = "serialize"
	StageExport    Stage = "export"
)

// Exit codes returned by ExitCode.
const (
	ExitOK           = 0
	ExitFetchFailure = 1
	ExitFailure      = 2
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err's chain, or "" if there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ExitCode maps a run error to the process exit status: 0 on success, 1 when
// the archive could not be fetched and 2 for every other failure, local setup
// included.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case StageOf(err) == StageFetch:
		return ExitFetchFailure
	default:
		return ExitFailure
	}
}
