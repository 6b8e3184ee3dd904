package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_PreservesInsertionOrder(t *testing.T) {
	tree := NewTree[string]()
	tree.Append("user", "GET", "/a")
	tree.Append("ride", "GET", "/b")
	tree.Append("user", "POST", "/c")
	tree.Append("user", "GET", "/d")

	var visited []string
	tree.Walk(func(category, method, item string) {
		visited = append(visited, category+" "+method+" "+item)
	})

	assert.Equal(t, []string{
		"user GET /a",
		"user GET /d",
		"user POST /c",
		"ride GET /b",
	}, visited)
	assert.Equal(t, 4, tree.Count())
	assert.Equal(t, []string{"/a", "/d"}, tree.Items("user", "GET"))
	assert.Nil(t, tree.Items("missing", "GET"))
}

func TestTree_NilCount(t *testing.T) {
	var tree *Tree[int]
	assert.Equal(t, 0, tree.Count())
}

func TestOutcome_MarshalCarriesExtraFields(t *testing.T) {
	date := time.Unix(1700000000, 0)
	o := Outcome{
		Endpoint: "/api/me",
		Result:   Failed,
		FailureDetails: &FailureDetails{
			Status:    404,
			ErrorCode: "E1",
			Message:   "nope",
		},
		TestDate: date,
		Fields: map[string]json.RawMessage{
			"note":        json.RawMessage(`"keep me"`),
			"test_result": json.RawMessage(`"Successful"`),
		},
	}

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"endpoint": "/api/me",
		"note": "keep me",
		"test_result": "Failed",
		"failure_details": {"status": 404, "error_code": "E1", "message": "nope"},
		"test_date": 1700000000
	}`, string(data))

	var back Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "/api/me", back.Endpoint)
	assert.Equal(t, Failed, back.Result)
	assert.Equal(t, "nope", back.FailureDetails.Message)
	assert.True(t, back.TestDate.Equal(date))
	assert.Equal(t, json.RawMessage(`"keep me"`), back.Fields["note"])
}

func TestOutcome_NullFailureDetails(t *testing.T) {
	data, err := json.Marshal(Outcome{Endpoint: "/x", Result: Incomplete})
	require.NoError(t, err)
	assert.JSONEq(t, `{"endpoint":"/x","test_result":"Incomplete","failure_details":null,"test_date":0}`, string(data))
}

func TestOutcome_MarshalDoesNotEscapeHTML(t *testing.T) {
	data, err := json.Marshal(Outcome{Endpoint: "/api/x?a=1&b=<2>", Result: Successful})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"endpoint":"/api/x?a=1&b=<2>"`)
}
