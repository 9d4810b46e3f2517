package timeline

import "kestrel-irp/core/store"

// PatternListener receives detected and manually correlated patterns.
// The registry lives on the owning Service instance, not in any
// process-wide emitter; downstream subsystems (escalation, reporting)
// register explicitly.
type PatternListener interface {
	PatternDetected(caseID string, pattern store.Pattern)
}

// PatternListenerFunc adapts a plain function to the interface.
type PatternListenerFunc func(caseID string, pattern store.Pattern)

func (f PatternListenerFunc) PatternDetected(caseID string, pattern store.Pattern) {
	f(caseID, pattern)
}
