package dataflow

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow/table"
)

// Sentinel errors for node lifecycle and data access.
var (
	// ErrInvalidLifecycle indicates predict was called on a node that was never fit.
	ErrInvalidLifecycle = errors.New("invalid lifecycle: predict before fit")

	// ErrNotFitted indicates a model node has no fitted transform.
	// It matches ErrInvalidLifecycle with errors.Is.
	ErrNotFitted = fmt.Errorf("%w: transform not fitted", ErrInvalidLifecycle)

	// ErrColumnMismatch indicates required columns are absent from an input.
	ErrColumnMismatch = table.ErrColumnMismatch

	// ErrNoDataAvailable indicates a data origin returned nothing for the
	// requested window.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrMissingInput indicates a node received no table on its input port.
	ErrMissingInput = errors.New("missing input")
)

// Sentinel errors for graph construction.
var (
	// ErrCycleDetected indicates an edge would close a cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnknownNode indicates a node id is not part of the DAG.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode indicates a node id is already used in the DAG.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidNodeID indicates a node id is empty or contains whitespace.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrPortInUse indicates a consumer port already has a producer.
	ErrPortInUse = errors.New("input port already connected")

	// ErrNoUniqueSink indicates the DAG has zero or several sinks.
	ErrNoUniqueSink = errors.New("dag has no unique sink")
)

// Sentinel errors for scheduling.
var (
	// ErrMissingUpstreamOutput indicates a producer output was not available
	// when its consumer ran. This is a scheduler defect, not a recoverable
	// condition.
	ErrMissingUpstreamOutput = errors.New("missing upstream output")

	// ErrInvalidMode indicates a mode other than fit or predict.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrNilContext indicates a run was started with a nil context.
	ErrNilContext = errors.New("context cannot be nil")
)

// ErrUnsupportedNodeType indicates a factory does not know a node type name.
var ErrUnsupportedNodeType = errors.New("unsupported node type")

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("fit", "predict", "inputs", "lookup").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports that a run stopped before a node executed.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Completed lists the nodes that finished before cancellation.
	Completed []string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
