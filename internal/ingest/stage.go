package ingest

// Stage is a step of the ingest pipeline.
type Stage int

// Pipeline stages in execution order, followed by the terminal rollback
// state.
const (
	StageValidating Stage = iota
	StageHashing
	StageDuplicateCheck
	StageExtractingMetadata
	StageStoringOriginal
	StagePersistingRecord
	StageGeneratingDerivatives
	StageCommitted
	StageRolledBack
)

var stageNames = [...]string{
	StageValidating:            "validating",
	StageHashing:               "hashing",
	StageDuplicateCheck:        "duplicate_check",
	StageExtractingMetadata:    "extracting_metadata",
	StageStoringOriginal:       "storing_original",
	StagePersistingRecord:      "persisting_record",
	StageGeneratingDerivatives: "generating_derivatives",
	StageCommitted:             "committed",
	StageRolledBack:            "rolled_back",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Outcome is the tag of a Result.
type Outcome int

// Outcomes
const (
	OutcomeCommitted Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}
