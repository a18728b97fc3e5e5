package lesson

import "fmt"

// Stage is a step of one lesson request.
type Stage int

const (
	StageResolving Stage = iota
	StageRetrieving
	StageGenerating
	StageAssembling
	StageDone
	StageDegradedDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageResolving:
		return "RESOLVING"
	case StageRetrieving:
		return "RETRIEVING"
	case StageGenerating:
		return "GENERATING"
	case StageAssembling:
		return "ASSEMBLING"
	case StageDone:
		return "DONE"
	case StageDegradedDone:
		return "DEGRADED_DONE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageDegradedDone || s == StageFailed
}

// Retrieval and generation never fail a request. A gateway failure
// short-circuits GENERATING to DEGRADED_DONE with a minimal draft, and
// only assembly can reach FAILED.
var transitions = map[Stage][]Stage{
	StageResolving:  {StageRetrieving},
	StageRetrieving: {StageGenerating},
	StageGenerating: {StageAssembling, StageDegradedDone},
	StageAssembling: {StageDone, StageDegradedDone, StageFailed},
}

// CanTransition reports whether from may advance to to.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// tracker records the stages one request passes through.
type tracker struct {
	current Stage
	path    []Stage
}

func newTracker() *tracker {
	return &tracker{current: StageResolving, path: []Stage{StageResolving}}
}

func (t *tracker) advance(to Stage) error {
	if !CanTransition(t.current, to) {
		return fmt.Errorf("invalid stage transition %s -> %s", t.current, to)
	}
	t.current = to
	t.path = append(t.path, to)
	return nil
}
