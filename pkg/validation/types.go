package validation

import (
	"time"
)

// Severity levels for validation findings.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
)

// Blocking reports whether findings at this severity should be surfaced
// separately from informational ones in run summaries.
func (s Severity) Blocking() bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityHigh:
		return true
	}
	return false
}

// Scope groups validation tests by the aspect of the path they inspect.
type Scope string

const (
	ScopeConnectivity Scope = "CONNECTIVITY"
	ScopeFlow         Scope = "FLOW"
	ScopeMaterial     Scope = "MATERIAL"
	ScopeQA           Scope = "QA"
)

// ErrorKind is the typed reason for a validation error.
type ErrorKind string

const (
	KindMissingNode       ErrorKind = "MISSING_NODE"
	KindMissingLink       ErrorKind = "MISSING_LINK"
	KindConnectivityBreak ErrorKind = "CONNECTIVITY_BREAK"
	KindWrongDirection    ErrorKind = "WRONG_DIRECTION"
	KindMissingAttribute  ErrorKind = "MISSING_ATTRIBUTE"
	KindUtilityMismatch   ErrorKind = "UTILITY_MISMATCH"
	KindMissingFlow       ErrorKind = "MISSING_FLOW"
	KindFlowImbalance     ErrorKind = "FLOW_IMBALANCE"
	KindInvalidMaterial   ErrorKind = "INVALID_MATERIAL"
	KindPathLength        ErrorKind = "PATH_LENGTH"
	KindPathLoops         ErrorKind = "PATH_LOOPS"
	KindTestFailure       ErrorKind = "TEST_FAILURE"
)

// ObjectType identifies what a finding points at.
type ObjectType string

const (
	ObjectNode ObjectType = "NODE"
	ObjectLink ObjectType = "LINK"
	ObjectPoC  ObjectType = "POC"
	ObjectPath ObjectType = "PATH"
)

// ValidationError is one finding against one path. Created during
// validation, persisted by the orchestrator, never mutated afterwards.
type ValidationError struct {
	RunID    string
	PathID   int64
	TestCode string
	Severity Severity
	Scope    Scope
	Kind     ErrorKind
	Object   ObjectType
	ObjectID int64
	Message  string
	Data     map[string]any
}

// ReviewFlag marks an out-of-band anomaly for human review.
type ReviewFlag struct {
	ID          string
	RunID       string
	Severity    Severity
	Reason      string
	Object      ObjectType
	StartNodeID int64
	EndNodeID   int64
	Fab         string
	UtilityNo   int
	Notes       string
	CreatedAt   time.Time
}

// TestDef describes one entry of the validation test catalog.
type TestDef struct {
	Code     string
	Name     string
	Scope    Scope
	Severity Severity
}

// Catalog is the fixed, ordered battery of path validation tests.
var Catalog = []TestDef{
	{Code: "CONN_001", Name: "PoC Connectivity Validation", Scope: ScopeConnectivity, Severity: SeverityCritical},
	{Code: "CONN_002", Name: "Path Continuity Check", Scope: ScopeConnectivity, Severity: SeverityCritical},
	{Code: "DATA_001", Name: "Required Attributes Check", Scope: ScopeConnectivity, Severity: SeverityHigh},
	{Code: "UTY_001", Name: "Utility Consistency Check", Scope: ScopeFlow, Severity: SeverityHigh},
	{Code: "UTY_002", Name: "Utility Flow Direction", Scope: ScopeFlow, Severity: SeverityWarning},
	{Code: "MAT_001", Name: "Material Consistency Check", Scope: ScopeMaterial, Severity: SeverityWarning},
	{Code: "QA_001", Name: "Path Structure Assessment", Scope: ScopeQA, Severity: SeverityError},
	{Code: "QA_002", Name: "Loop Detection", Scope: ScopeQA, Severity: SeverityMedium},
}
