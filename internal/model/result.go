package model

// Result is the outcome of one symbol's pipeline inside a batch.
// Exactly one of Value or Err is meaningful.
type Result[T any] struct {
	Symbol string
	Value  T
	Err    error
}

// OK reports whether the pipeline succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Failure is the reportable form of a failed Result.
type Failure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Split separates successful values from failures, preserving order.
// Both slices are non-nil so batches encode "failures": [] when every
// symbol succeeded.
func Split[T any](results []Result[T]) ([]T, []Failure) {
	values := make([]T, 0, len(results))
	failures := make([]Failure, 0)
	for _, r := range results {
		if !r.OK() {
			failures = append(failures, Failure{Symbol: r.Symbol, Error: r.Err.Error()})
			continue
		}
		values = append(values, r.Value)
	}
	return values, failures
}
