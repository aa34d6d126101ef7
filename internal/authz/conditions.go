package authz

import (
	"log/slog"
	"strings"
)

// lookupPath walks a dot path through nested string-keyed maps. Any missing
// segment yields (nil, false).
func lookupPath(rctx map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = rctx
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// evalCondition compares the runtime context value at the condition's field
// path against its literal. Unknown operators evaluate to false and are
// logged; conditions fail closed.
func evalCondition(cond Condition, rctx map[string]any, logger *slog.Logger) bool {
	value, present := lookupPath(rctx, cond.Field)

	switch cond.Operator {
	case OpEq:
		return present && looseEqual(value, cond.Value)
	case OpNeq:
		return !present || !looseEqual(value, cond.Value)
	case OpGt:
		return present && numericCompare(value, cond.Value, func(a, b float64) bool { return a > b })
	case OpGte:
		return present && numericCompare(value, cond.Value, func(a, b float64) bool { return a >= b })
	case OpLt:
		return present && numericCompare(value, cond.Value, func(a, b float64) bool { return a < b })
	case OpLte:
		return present && numericCompare(value, cond.Value, func(a, b float64) bool { return a <= b })
	case OpIn:
		return present && memberOf(cond.Value, value)
	case OpNotIn:
		return !present || !memberOf(cond.Value, value)
	case OpContains:
		return present && containsValue(value, cond.Value)
	default:
		log := logger
		if log == nil {
			log = slog.Default()
		}
		log.Warn("unknown condition operator, failing closed",
			slog.String("operator", string(cond.Operator)),
			slog.String("field", cond.Field))
		return false
	}
}

// looseEqual compares scalars the way JSON round-tripped values compare:
// all numbers as float64, everything else by exact match.
func looseEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func numericCompare(a, b any, cmp func(a, b float64) bool) bool {
	fa, ok := asFloat(a)
	if !ok {
		return false
	}
	fb, ok := asFloat(b)
	if !ok {
		return false
	}
	return cmp(fa, fb)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// memberOf reports whether needle occurs in the haystack slice.
func memberOf(haystack, needle any) bool {
	switch list := haystack.(type) {
	case []any:
		for _, item := range list {
			if looseEqual(needle, item) {
				return true
			}
		}
	case []string:
		s, ok := needle.(string)
		if !ok {
			return false
		}
		for _, item := range list {
			if item == s {
				return true
			}
		}
	}
	return false
}

// containsValue handles both shapes the original contract allows: a context
// slice containing the literal, or a context string containing the literal
// substring.
func containsValue(contextValue, literal any) bool {
	switch v := contextValue.(type) {
	case []any, []string:
		return memberOf(v, literal)
	case string:
		s, ok := literal.(string)
		return ok && strings.Contains(v, s)
	}
	return false
}
