package model

import "time"

// Status is the terminal outcome of one enriched record.
type Status string

const (
	StatusFound        Status = "FOUND"
	StatusNotFound     Status = "NOT_FOUND"
	StatusMissingInput Status = "MISSING_INPUT"
)

// InputRecord is one spreadsheet row as read from the input source.
type InputRecord struct {
	Company   string `json:"company"`
	City      string `json:"city,omitempty"`
	StateCode string `json:"state_code,omitempty"`
}

// OutputRecord is one annotated row. Company, City and StateCode hold the
// normalized (and default-substituted) values used for the search.
type OutputRecord struct {
	Company    string `json:"company"`
	City       string `json:"city"`
	StateCode  string `json:"state_code"`
	Identifier string `json:"identifier_found"`
	Status     Status `json:"status"`
}

// Principal identifies the already-authorized caller of a run.
type Principal struct {
	Subject string `json:"subject"`
	Source  string `json:"source"` // cli, http
}

// IsZero reports whether no caller identity was supplied.
func (p Principal) IsZero() bool {
	return p.Subject == ""
}

// RunSummary aggregates the outcome of one pipeline invocation.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Principal      Principal     `json:"principal"`
	Total          int           `json:"total"`
	Found          int           `json:"found"`
	NotFound       int           `json:"not_found"`
	MissingInput   int           `json:"missing_input"`
	SearchCalls    int           `json:"search_calls"`
	SearchFailures int           `json:"search_failures"`
	Duration       time.Duration `json:"duration"`
}

// Add counts one output record toward the summary.
func (s *RunSummary) Add(rec OutputRecord) {
	s.Total++
	switch rec.Status {
	case StatusFound:
		s.Found++
	case StatusNotFound:
		s.NotFound++
	case StatusMissingInput:
		s.MissingInput++
	}
}
