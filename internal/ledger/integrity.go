package ledger

import (
	"fmt"

	"endpoint-prober/internal/types"
)

// Integrity compares the catalog count with the persisted ledger count.
// Malformed, Duplicates and Skipped explain the expected shortfall.
type Integrity struct {
	Catalog    int `json:"catalog"`
	Ledger     int `json:"ledger"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Matched reports whether the counts are equal
func (i Integrity) Matched() bool {
	return i.Catalog == i.Ledger
}

// Unexplained is the part of the difference not covered by malformed,
// duplicate or skipped entries. Anything but zero means entries were lost.
func (i Integrity) Unexplained() int {
	return i.Catalog - i.Ledger - i.Malformed - i.Duplicates - i.Skipped
}

func (i Integrity) String() string {
	if i.Matched() {
		return fmt.Sprintf("endpoint counts matched: %d", i.Catalog)
	}
	return fmt.Sprintf("initial count of endpoints (%d) does not match final count (%d): malformed=%d duplicates=%d skipped=%d unexplained=%d",
		i.Catalog, i.Ledger, i.Malformed, i.Duplicates, i.Skipped, i.Unexplained())
}

// Change is an endpoint whose result differs from the previous snapshot
type Change struct {
	Category string           `json:"category"`
	Method   string           `json:"method"`
	Endpoint string           `json:"endpoint"`
	Before   types.TestResult `json:"before"`
	After    types.TestResult `json:"after"`
}

// Regression reports whether an endpoint stopped succeeding
func (c Change) Regression() bool {
	return c.Before == types.Successful && c.After != types.Successful
}

// Diff lists, in current order, the endpoints whose result changed since
// previous. Endpoints that are new in current have an empty Before.
func Diff(previous, current *types.Ledger) []Change {
	before := make(map[string]types.TestResult)
	previous.Walk(func(category, method string, o types.Outcome) {
		before[category+"\x00"+method+"\x00"+o.Endpoint] = o.Result
	})

	var changes []Change
	current.Walk(func(category, method string, o types.Outcome) {
		prev := before[category+"\x00"+method+"\x00"+o.Endpoint]
		if prev == o.Result {
			return
		}
		changes = append(changes, Change{
			Category: category,
			Method:   method,
			Endpoint: o.Endpoint,
			Before:   prev,
			After:    o.Result,
		})
	})
	return changes
}
