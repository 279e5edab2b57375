package models

import "github.com/dmitrijs2005/lazyboy/internal/status"

// Outcome is the result of initializing one database.
type Outcome struct {
	Name   string              `json:"name"`
	Status status.CreateStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// Report aggregates the outcomes of one bootstrap run.
type Report struct {
	Success []Outcome `json:"success"`
	Fail    []Outcome `json:"fail"`
}

// Add files o into the success or fail bucket. Statuses that are neither
// (e.g. UpdateNeeded) are ignored.
func (r *Report) Add(o Outcome) {
	switch {
	case status.IsFailure(o.Status):
		r.Fail = append(r.Fail, o)
	case status.IsSuccess(o.Status):
		r.Success = append(r.Success, o)
	}
}

// Len is the number of classified outcomes.
func (r *Report) Len() int {
	return len(r.Success) + len(r.Fail)
}

// DropReport lists the databases a bulk drop destroyed or failed to destroy.
type DropReport struct {
	Dropped []string `json:"dropped"`
	Fail    []string `json:"fail"`
}
