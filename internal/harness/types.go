package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// Completion cases.
const (
	CaseSuccess = "success"
	CaseError   = "error"
)

// TraceEvent is one entry of a scenario trace: the invocation of an op, or
// its completion.
type TraceEvent struct {
	Type string         `json:"type"` // "invocation" or "completion"
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
	Case string         `json:"case,omitempty"`
	Code string         `json:"code,omitempty"`
	IDs  []int64        `json:"ids,omitempty"`
	Seq  int64          `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every invocation and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the database state after the flow.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(op string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: EventInvocation,
		Op:   op,
		Args: args,
		Seq:  seq,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(op, outputCase, code string, ids []int64, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: EventCompletion,
		Op:   op,
		Case: outputCase,
		Code: code,
		IDs:  ids,
		Seq:  seq,
	})
}
