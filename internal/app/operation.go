package app

import (
	"strings"
	"time"
)

// Operation tracks the CLI command being run. Its ID tags every log line
// written during the command.
type Operation struct {
	ID        string
	Command   string
	Args      string
	Status    string // "success" or "error"
	StartedAt time.Time
}

// NewOperation creates an operation for command started at now.
func NewOperation(command string, args []string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z"),
		Command:   command,
		Args:      strings.Join(args, " "),
		Status:    "success",
		StartedAt: now,
	}
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
