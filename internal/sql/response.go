package sql

import "time"

// QueryTimes maps engine-defined stage names to elapsed durations. Stage
// names are expected to be unique per engine call.
type QueryTimes map[string]time.Duration

// QueryResponse is what the engine returns for a single scan or lookup.
type QueryResponse struct {
	Records []Record
	Times   QueryTimes
}
