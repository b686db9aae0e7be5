package batch

// File statuses reported in progress lines and the run index.
const (
	StatusOK          = "ok"
	StatusSkipped     = "skipped"
	StatusSkippedDate = "skipped-date"
	StatusError       = "error"
)

// Error reasons distinguish which pipeline step failed.
const (
	ReasonConvert   = "convert"
	ReasonRecognize = "recognize"
	ReasonArtifacts = "artifacts"
)

// FileResult records the outcome for one scanned source file.
type FileResult struct {
	Status    string
	Source    string
	OutputDir string
	Reason    string
	Message   string
}

// Summary aggregates one executor invocation.
type Summary struct {
	Total   int
	Counts  map[string]int
	Results []FileResult
}

func (s *Summary) add(result FileResult) {
	if s.Counts == nil {
		s.Counts = make(map[string]int)
	}
	s.Counts[result.Status]++
	s.Results = append(s.Results, result)
}

// Failed reports whether any file ended in error.
func (s *Summary) Failed() bool {
	return s.Counts[StatusError] > 0
}
