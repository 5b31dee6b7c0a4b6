package dto

import (
	"time"

	"github.com/customeros/mailbackup/internal/enum"
)

// RunSummary is the outcome of one account synchronization.
type RunSummary struct {
	RunID             string           `json:"runId"`
	AccountID         string           `json:"accountId"`
	Outcome           enum.SyncOutcome `json:"outcome"`
	NewMessages       int              `json:"newMessages"`
	Duplicates        int              `json:"duplicates"`
	DecodeFailures    int              `json:"decodeFailures"`
	FoldersSwept      int              `json:"foldersSwept"`
	FoldersRegistered int              `json:"foldersRegistered"`
	FoldersIgnored    int              `json:"foldersIgnored"`
	Cancelled         bool             `json:"cancelled"`
	Errors            []string         `json:"errors,omitempty"`
	StartedAt         time.Time        `json:"startedAt"`
	FinishedAt        time.Time        `json:"finishedAt"`
}

func (s *RunSummary) AddError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}
