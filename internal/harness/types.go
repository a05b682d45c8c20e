package harness

// TraceEvent records one executed flow operation. Fields are filled
// per operation kind; everything except Op is optional. Events carry
// only scenario-provided identifiers and derived quantities, never
// generated ids or timestamps, so traces compare byte-for-byte across
// runs.
type TraceEvent struct {
	Op           string   `json:"op"`
	Variant      string   `json:"variant,omitempty"`
	Product      string   `json:"product,omitempty"`
	Type         string   `json:"type,omitempty"`
	Change       int      `json:"change,omitempty"`
	NewStock     *int     `json:"new_stock,omitempty"`
	Stocks       []int    `json:"stocks,omitempty"`
	Deleted      int      `json:"deleted,omitempty"`
	Repaired     int      `json:"repaired,omitempty"`
	DuplicateIDs []string `json:"duplicate_ids,omitempty"`
	Primary      string   `json:"primary,omitempty"`
	Secondary    string   `json:"secondary,omitempty"`
	Variants     int      `json:"variants,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow operation, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists every expect or assertion failure. Empty when Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddTrace appends one event to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
