package summarizer

import (
	"errors"
	"fmt"
	"net/url"
)

// Outcome tags how a summarization call ended.
type Outcome string

const (
	OutcomeSummary        Outcome = "summary"
	OutcomeEmptyInput     Outcome = "empty_input"
	OutcomeUnreachable    Outcome = "unreachable"
	OutcomeUpstreamStatus Outcome = "upstream_status"
	OutcomeInvalidJSON    Outcome = "invalid_json"
	OutcomeNoSummary      Outcome = "no_summary"
)

// Fixed display messages.
const (
	MsgEmptyInput  = "Please enter some text to summarize."
	MsgInvalidJSON = "Error: invalid JSON from upstream service"
	MsgNoSummary   = "No summary generated."
)

// Result is the outcome of one Summarize call. Only the fields relevant to
// Outcome are set.
type Result struct {
	Outcome    Outcome
	Summary    string // OutcomeSummary
	StatusCode int    // OutcomeUpstreamStatus
	Body       string // OutcomeUpstreamStatus, raw upstream body
	Err        error  // OutcomeUnreachable
}

// OK reports whether the upstream produced a summary.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSummary
}

// Display renders the result as the single string shown to the user.
func (r Result) Display() string {
	switch r.Outcome {
	case OutcomeSummary:
		return r.Summary
	case OutcomeEmptyInput:
		return MsgEmptyInput
	case OutcomeUnreachable:
		return "Error: upstream service unreachable: " + transportDetail(r.Err)
	case OutcomeUpstreamStatus:
		return fmt.Sprintf("Error from upstream (%d): %s", r.StatusCode, r.Body)
	case OutcomeInvalidJSON:
		return MsgInvalidJSON
	default:
		return MsgNoSummary
	}
}

func (r Result) String() string {
	return r.Display()
}

func unreachable(err error) Result {
	return Result{Outcome: OutcomeUnreachable, Err: err}
}

// transportDetail strips the `Post "http://...":` prefix net/http puts on
// transport errors so the message names only the failure.
func transportDetail(err error) string {
	if err == nil {
		return "unknown error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
