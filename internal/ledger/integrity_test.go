package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"endpoint-prober/internal/types"
)

func TestIntegrity(t *testing.T) {
	ok := Integrity{Catalog: 5, Ledger: 5}
	assert.True(t, ok.Matched())
	assert.Equal(t, "endpoint counts matched: 5", ok.String())

	short := Integrity{Catalog: 10, Ledger: 6, Malformed: 1, Duplicates: 2}
	assert.False(t, short.Matched())
	assert.Equal(t, 1, short.Unexplained())
	assert.Contains(t, short.String(), "does not match final count (6)")
}

func TestDiff(t *testing.T) {
	prev := types.NewTree[types.Outcome]()
	prev.Append("user", "GET", types.Outcome{Endpoint: "/a", Result: types.Successful})
	prev.Append("user", "GET", types.Outcome{Endpoint: "/b", Result: types.Failed})
	prev.Append("user", "GET", types.Outcome{Endpoint: "/c", Result: types.Successful})

	curr := types.NewTree[types.Outcome]()
	curr.Append("user", "GET", types.Outcome{Endpoint: "/a", Result: types.Failed})
	curr.Append("user", "GET", types.Outcome{Endpoint: "/b", Result: types.Successful})
	curr.Append("user", "GET", types.Outcome{Endpoint: "/c", Result: types.Successful})
	curr.Append("user", "POST", types.Outcome{Endpoint: "/a", Result: types.Incomplete})

	changes := Diff(prev, curr)
	assert.Equal(t, []Change{
		{Category: "user", Method: "GET", Endpoint: "/a", Before: types.Successful, After: types.Failed},
		{Category: "user", Method: "GET", Endpoint: "/b", Before: types.Failed, After: types.Successful},
		{Category: "user", Method: "POST", Endpoint: "/a", Before: "", After: types.Incomplete},
	}, changes)
	assert.True(t, changes[0].Regression())
	assert.False(t, changes[1].Regression())
	assert.False(t, changes[2].Regression())
}
