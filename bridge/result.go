package bridge

import "fmt"

// Code classifies the outcome of a bridge operation. Operations never
// panic or propagate engine faults; they report one of these codes and the
// boundary layer translates failed Results into sentinel values.
type Code int

const (
	// CodeOK means the operation completed and its value is meaningful.
	CodeOK Code = iota

	// CodeNoInstance means no live simulation instance exists.
	CodeNoInstance

	// CodeBadArgument means a caller-supplied argument was unusable
	// (empty path, nil or short buffer).
	CodeBadArgument

	// CodeUnavailable means the addressed hart, unit, or register does
	// not exist on the live instance.
	CodeUnavailable

	// CodeFault means the engine raised an internal fault. The fault is
	// recorded in Err and never propagates past the bridge.
	CodeFault
)

// Result carries an operation outcome across the bridge's internal layers.
// The boundary performs exactly one translation step from Result to the
// sentinel convention of the external interface.
type Result struct {
	Code Code
	Err  error
}

// Failed reports whether the operation's value should be replaced by the
// documented sentinel.
func (r Result) Failed() bool {
	return r.Code != CodeOK
}

func (r Result) String() string {
	switch r.Code {
	case CodeOK:
		return "ok"
	case CodeNoInstance:
		return "no instance"
	case CodeBadArgument:
		return "bad argument"
	case CodeUnavailable:
		return "unavailable"
	case CodeFault:
		return fmt.Sprintf("engine fault: %v", r.Err)
	}
	return fmt.Sprintf("code %d", int(r.Code))
}

func ok() Result {
	return Result{Code: CodeOK}
}

func noInstance() Result {
	return Result{Code: CodeNoInstance}
}

func badArgument() Result {
	return Result{Code: CodeBadArgument}
}

func unavailable() Result {
	return Result{Code: CodeUnavailable}
}

func fault(err error) Result {
	return Result{Code: CodeFault, Err: err}
}

func faultf(format string, args ...any) Result {
	return Result{Code: CodeFault, Err: fmt.Errorf(format, args...)}
}
