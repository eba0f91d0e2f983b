package harness

import "github.com/roach88/spotter/internal/ir"

// OutcomeOK marks a step that succeeded. Failed steps carry the error kind.
const OutcomeOK = "ok"

// TraceEvent records one engine call made by a scenario step.
type TraceEvent struct {
	Seq     int64                  `json:"seq"`
	Step    int                    `json:"step"`
	Action  string                 `json:"action"`
	Op      string                 `json:"op,omitempty"`
	Hash    string                 `json:"hash,omitempty"`
	Outcome string                 `json:"outcome"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every engine call in order.
	Trace []TraceEvent `json:"trace"`

	// Events are the proposal events delivered after the last step.
	Events []ir.ProposeEvent `json:"events"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Events: []ir.ProposeEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an engine call to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
