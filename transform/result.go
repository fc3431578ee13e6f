package transform

// Status is the terminal state of one Transform call.
type Status int

const (
	// StatusSuccess means validated replacement markup is available.
	StatusSuccess Status = iota
	// StatusValidationFailed means the backend answered but the answer broke
	// the structural contract.
	StatusValidationFailed
	// StatusSkipped means the article has no structure worth repairing.
	StatusSkipped
	// StatusFailed means capacity was exceeded or every backend failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusValidationFailed:
		return "validation_failed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is one article to repair.
type Request struct {
	DocumentNumber string
	ArticleNumber  string
	CurrentMarkup  string
	RawText        string
}

// Result is the outcome of Transform. TransformedText is set only on
// StatusSuccess.
type Result struct {
	Status          Status
	TransformedText string
	ModelUsed       string
	Backend         Backend
	Estimate        Estimate
	Reason          string
	Errors          []string
	Capacity        bool
}

// Succeeded reports whether the record may be written back.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}
