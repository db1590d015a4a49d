package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OperationSpec describes one item of a batch.
// Kind selects the operation handler; Params is the item document in host units.
type OperationSpec struct {
	Kind   string         `json:"kind" mapstructure:"kind"`
	Params map[string]any `json:"params,omitempty" mapstructure:"params"`
}

// BatchRequest is the caller-facing batch shape: {"items": [...]}.
// An item may carry its own "kind"; otherwise the method's default applies.
type BatchRequest struct {
	Items []map[string]any `json:"items"`
}

// Specs converts the request items into operation specs.
// Items without a "kind" field get defaultKind. The "kind" key is removed from Params.
func (b BatchRequest) Specs(defaultKind string) []OperationSpec {
	specs := make([]OperationSpec, len(b.Items))
	for i, item := range b.Items {
		kind := defaultKind
		params := make(map[string]any, len(item))
		for k, v := range item {
			if k == "kind" {
				if s, ok := v.(string); ok && s != "" {
					kind = s
				}
				continue
			}
			params[k] = v
		}
		specs[i] = OperationSpec{Kind: kind, Params: params}
	}
	return specs
}

// Outcome is the result of one batch item. It is a tagged variant:
// Success with a Value, or failure with an Error message.
// Use Succeeded and Failed to build one.
type Outcome struct {
	Index   int
	Success bool
	Value   json.RawMessage
	Error   string
	// ElementID is the element a failure concerns, when the fault names one.
	ElementID int64
}

// Succeeded builds a successful outcome.
func Succeeded(index int, value json.RawMessage) Outcome {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return Outcome{Index: index, Success: true, Value: value}
}

// Failed builds a failed outcome from an item fault.
func Failed(index int, err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	o := Outcome{Index: index, Error: msg}
	var ee *ElementError
	if errors.As(err, &ee) {
		o.ElementID = ee.ElementID
	}
	return o
}

type outcomeJSON struct {
	Index   int             `json:"index"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	// Only set on failures.
	ElementID int64 `json:"element_id,omitempty"`
}

// MarshalJSON emits {"index","success","result"} or {"index","success","error"}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{Index: o.Index, Success: o.Success}
	if o.Success {
		out.Result = o.Value
		if len(out.Result) == 0 {
			out.Result = json.RawMessage("null")
		}
	} else {
		out.Error = o.Error
		out.ElementID = o.ElementID
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var in outcomeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*o = Outcome{Index: in.Index, Success: in.Success}
	if in.Success {
		o.Value = in.Result
	} else {
		o.Error = in.Error
		o.ElementID = in.ElementID
	}
	return nil
}

// Decode unmarshals the value of a successful outcome.
func (o Outcome) Decode(v any) error {
	if !o.Success {
		return fmt.Errorf("item %d failed: %s", o.Index, o.Error)
	}
	return json.Unmarshal(o.Value, v)
}

// BatchResult is what the executor returns for a committed transaction.
type BatchResult struct {
	Committed bool
	Outcomes  []Outcome
}

// Reply converts the result into the wire shape.
func (r *BatchResult) Reply() BatchReply {
	outcomes := r.Outcomes
	if outcomes == nil {
		outcomes = []Outcome{}
	}
	return BatchReply{Success: r.Committed, Results: outcomes}
}

// BatchReply is the wire shape of a batch result: {"success": true, "results": [...]}.
type BatchReply struct {
	Success bool      `json:"success"`
	Results []Outcome `json:"results"`
}

// Succeeded counts the successful outcomes.
func (r BatchReply) Succeeded() int {
	n := 0
	for _, o := range r.Results {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts the failed outcomes.
func (r BatchReply) Failed() int {
	return len(r.Results) - r.Succeeded()
}
