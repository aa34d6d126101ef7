package authz

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLookupPath(t *testing.T) {
	rctx := map[string]any{
		"order": map[string]any{
			"total":  float64(120),
			"lines":  []any{"a", "b"},
			"status": "open",
		},
	}

	value, ok := lookupPath(rctx, "order.total")
	assert.True(t, ok)
	assert.Equal(t, float64(120), value)

	_, ok = lookupPath(rctx, "order.missing")
	assert.False(t, ok)

	_, ok = lookupPath(rctx, "order.status.deeper")
	assert.False(t, ok)

	_, ok = lookupPath(rctx, "")
	assert.False(t, ok)
}

func TestEvalConditionOperators(t *testing.T) {
	rctx := map[string]any{
		"amount": float64(100),
		"region": "north",
		"tags":   []any{"vip", "wholesale"},
	}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{Field: "region", Operator: OpEq, Value: "north"}, true},
		{"eq mismatch", Condition{Field: "region", Operator: OpEq, Value: "south"}, false},
		{"eq int literal against float context", Condition{Field: "amount", Operator: OpEq, Value: 100}, true},
		{"neq", Condition{Field: "region", Operator: OpNeq, Value: "south"}, true},
		{"neq on missing field holds", Condition{Field: "ghost", Operator: OpNeq, Value: "x"}, true},
		{"gt", Condition{Field: "amount", Operator: OpGt, Value: 50}, true},
		{"gte boundary", Condition{Field: "amount", Operator: OpGte, Value: 100}, true},
		{"lt fails", Condition{Field: "amount", Operator: OpLt, Value: 50}, false},
		{"lte boundary", Condition{Field: "amount", Operator: OpLte, Value: 100}, true},
		{"gt on missing field fails", Condition{Field: "ghost", Operator: OpGt, Value: 1}, false},
		{"in", Condition{Field: "region", Operator: OpIn, Value: []any{"north", "east"}}, true},
		{"in miss", Condition{Field: "region", Operator: OpIn, Value: []any{"south"}}, false},
		{"not-in", Condition{Field: "region", Operator: OpNotIn, Value: []any{"south"}}, true},
		{"not-in on missing field holds", Condition{Field: "ghost", Operator: OpNotIn, Value: []any{"x"}}, true},
		{"contains slice", Condition{Field: "tags", Operator: OpContains, Value: "vip"}, true},
		{"contains substring", Condition{Field: "region", Operator: OpContains, Value: "ort"}, true},
		{"contains miss", Condition{Field: "tags", Operator: OpContains, Value: "retail"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalCondition(tc.cond, rctx, testLogger()))
		})
	}
}

func TestEvalConditionUnknownOperatorFailsClosed(t *testing.T) {
	cond := Condition{Field: "region", Operator: Operator("matches"), Value: "north"}
	rctx := map[string]any{"region": "north"}

	assert.False(t, evalCondition(cond, rctx, testLogger()))
}
