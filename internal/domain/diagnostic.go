package domain

// Diagnostic stages.
const (
	StageNormalize = "normalize"
	StageReduce    = "reduce"
	StageFetch     = "fetch"
)

// Diagnostic records a record that was skipped or repaired during reconstruction.
// Diagnostics never abort a batch.
type Diagnostic struct {
	Stage     string `json:"stage"`
	EventType string `json:"event_type,omitempty"`
	TxID      string `json:"tx_id,omitempty"`
	EntityKey string `json:"entity_key,omitempty"`
	Reason    string `json:"reason"`
}

// Result carries either a fetched value or the error that prevented fetching it.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the value was obtained.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Ok wraps a successfully fetched value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failed wraps a fetch error. Value is the zero value of T.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}
