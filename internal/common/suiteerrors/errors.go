// Package suiteerrors contains the error types shared across the harness.
// The scenario runner looks for these types (using errors.As) to decide
// whether a failure is an infrastructure problem, to be reported separately
// from a quota-enforcement verdict.
package suiteerrors

import (
	"fmt"
	"time"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "recordSize"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %s", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for field %s; %s", err.Value, err.Name, err.Message)
}

// ErrInvalidQuotaOverride indicates a quota override table entry that does
// not follow the identity=value[,identity=value...] grammar. Raised at
// configuration-parse time, before any workload runs.
type ErrInvalidQuotaOverride struct {
	Entry   string // The offending entry, e.g., "some_id=abc"
	Message string
}

func (err *ErrInvalidQuotaOverride) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("invalid quota override entry %q", err.Entry)
	}
	return fmt.Sprintf("invalid quota override entry %q; %s", err.Entry, err.Message)
}

// ErrMissingMetric indicates that a required metric attribute had no sample
// by the time validation ran. This signals a measurement-harness failure and
// must never be conflated with a quota violation.
type ErrMissingMetric struct {
	Key string // Fully-qualified attribute key that was looked up
}

func (err *ErrMissingMetric) Error() string {
	return fmt.Sprintf("no samples recorded for metric attribute %q", err.Key)
}

// ErrZeroTraffic indicates that a consumer instance observed no messages
// before its timeout, i.e., the workload never saw traffic at all.
type ErrZeroTraffic struct {
	ClientId string
	Instance int
	Timeout  time.Duration
}

func (err *ErrZeroTraffic) Error() string {
	return fmt.Sprintf(
		"consumer %d (client id %q) didn't consume any message before the %s timeout",
		err.Instance, err.ClientId, err.Timeout,
	)
}
