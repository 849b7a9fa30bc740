package models

import (
	"fmt"
	"strings"
)

// ItemStatus is the per-item result of a collector.
type ItemStatus string

const (
	ItemOK      ItemStatus = "ok"
	ItemSkipped ItemStatus = "skipped"
)

// ItemResult records what happened to one indicator, ticker or site.
type ItemResult struct {
	Key    string     `json:"key"`
	Status ItemStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	Rows   int        `json:"rows"`
}

// Outcome is the overall result of one collector run.
type Outcome string

const (
	OutcomeRows   Outcome = "ok"     // at least one row collected
	OutcomeEmpty  Outcome = "empty"  // ran fine, nothing collected
	OutcomeFailed Outcome = "failed" // could not run at all
)

// CollectionReport aggregates the per-item results of one collector run.
type CollectionReport struct {
	Collector string       `json:"collector"`
	Items     []ItemResult `json:"items"`
	Rows      int          `json:"rows"`
	Outcome   Outcome      `json:"outcome"`
	Written   string       `json:"written,omitempty"` // path of the file written, if any
	Err       error        `json:"-"`
}

// NewCollectionReport starts a report for the named collector.
func NewCollectionReport(collector string) *CollectionReport {
	return &CollectionReport{Collector: collector}
}

// OK records an item that produced rows.
func (r *CollectionReport) OK(key string, rows int) {
	r.Items = append(r.Items, ItemResult{Key: key, Status: ItemOK, Rows: rows})
	r.Rows += rows
}

// Skip records an item that produced nothing.
func (r *CollectionReport) Skip(key, reason string) {
	r.Items = append(r.Items, ItemResult{Key: key, Status: ItemSkipped, Reason: reason})
}

// Fail marks the whole run as failed.
func (r *CollectionReport) Fail(err error) {
	r.Outcome = OutcomeFailed
	r.Err = err
}

// Finish derives the outcome from the row count unless the run already failed.
func (r *CollectionReport) Finish() {
	if r.Outcome == OutcomeFailed {
		return
	}
	if r.Rows > 0 {
		r.Outcome = OutcomeRows
	} else {
		r.Outcome = OutcomeEmpty
	}
}

// Skipped returns the skipped items.
func (r *CollectionReport) Skipped() []ItemResult {
	return r.filter(ItemSkipped)
}

// Succeeded returns the items that produced rows.
func (r *CollectionReport) Succeeded() []ItemResult {
	return r.filter(ItemOK)
}

func (r *CollectionReport) filter(s ItemStatus) []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status == s {
			out = append(out, it)
		}
	}
	return out
}

// Summary is a one-line human readable description.
func (r *CollectionReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s, %d rows, %d/%d items ok", r.Collector, r.Outcome, r.Rows, len(r.Succeeded()), len(r.Items))
	if r.Written != "" {
		fmt.Fprintf(&b, ", wrote %s", r.Written)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, ", error: %v", r.Err)
	}
	return b.String()
}
