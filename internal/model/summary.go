package model

import (
	"strings"
	"time"
)

// maxSummaryErrors keeps one bad day from bloating logs and task rows.
const maxSummaryErrors = 50

// RunSummary is the outcome of processing one fetched data set.
type RunSummary struct {
	Date        time.Time `json:"date"`
	Processed   int       `json:"processed"`
	Persisted   int       `json:"persisted"`
	Failed      int       `json:"failed"`
	Duplicates  int       `json:"duplicates"`
	PagesFailed int       `json:"pages_failed"`
	Errors      []string  `json:"errors"`
}

func (s *RunSummary) AddError(err error) {
	if len(s.Errors) < maxSummaryErrors {
		s.Errors = append(s.Errors, err.Error())
	}
}

func (s *RunSummary) ErrorText() string {
	return strings.Join(s.Errors, "; ")
}
