package yolo

// Outcome says what happened to one index row.
type Outcome string

const (
	OutcomeCopied        Outcome = "copied"
	OutcomeUnknownLabel  Outcome = "unknown_label"
	OutcomeMissingSource Outcome = "missing_source"
	OutcomeDuplicate     Outcome = "duplicate"
)

// Sample describes one processed index row.
type Sample struct {
	Filename string
	Label    string
	ClassID  int
	Outcome  Outcome
	Source   string
	Dest     string
}

// Observer follows a run. SampleDone is called from worker goroutines and
// must be safe for concurrent use.
type Observer interface {
	SplitStarted(split Split, total int)
	SampleDone(split Split, sample Sample)
	SplitFinished(result SplitResult)
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) SplitStarted(split Split, total int) {
	for _, o := range m {
		o.SplitStarted(split, total)
	}
}

func (m MultiObserver) SampleDone(split Split, sample Sample) {
	for _, o := range m {
		o.SampleDone(split, sample)
	}
}

func (m MultiObserver) SplitFinished(result SplitResult) {
	for _, o := range m {
		o.SplitFinished(result)
	}
}

type nopObserver struct{}

func (nopObserver) SplitStarted(Split, int)   {}
func (nopObserver) SampleDone(Split, Sample)  {}
func (nopObserver) SplitFinished(SplitResult) {}
