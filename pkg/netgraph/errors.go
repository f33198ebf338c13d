package netgraph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrGraphNotLoaded          = errors.New("graph not loaded")
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrNodeNotFound            = errors.New("node not found")
	ErrBackingStoreUnavailable = errors.New("backing store unavailable")
)

// GraphError provides structured error information for graph operations.
type GraphError struct {
	Op      string // Operation that failed (e.g., "Load", "FindPaths")
	NodeID  int64  // Offending node ID, if applicable
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.NodeID != 0 {
		return fmt.Sprintf("%s node %d: %v", e.Op, e.NodeID, e.Cause)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *GraphError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func opErr(op string, cause error) *GraphError {
	return &GraphError{Op: op, Cause: cause}
}

func nodeErr(op string, nodeID int64, cause error) *GraphError {
	return &GraphError{Op: op, NodeID: nodeID, Cause: cause}
}
