package model

import "fmt"

// ValidationError reports a malformed series. It is fatal to the compute
// cycle that received the series, never to the process.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid series at bar %d: %s", e.Index, e.Reason)
}

// FetchError reports a data source failure: invalid ticker, no connectivity,
// remote error, or an empty result. The scheduler records it on the cache
// entry and retries on the next cycle.
type FetchError struct {
	Source string
	Ticker string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: fetch %s: %s: %v", e.Source, e.Ticker, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: fetch %s: %s", e.Source, e.Ticker, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ComputeError reports an unexpected numeric failure in the indicator engine
// (non-finite results). Zero denominators are reported as insufficient data,
// not as a ComputeError.
type ComputeError struct {
	Ticker string
	Reason string
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s: %s", e.Ticker, e.Reason)
}
