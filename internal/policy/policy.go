// Package policy implements the ordered-rule ABAC store and evaluator.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpIn       Operator = "in"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
)

type Condition struct {
	FieldPath string   `json:"field_path"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

type Rule struct {
	ID         string      `json:"id"`
	Effect     Effect      `json:"effect"`
	Priority   int         `json:"priority"`
	Actions    []string    `json:"actions"`
	Conditions []Condition `json:"conditions"`
}

type Policy struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	Rules     []Rule    `json:"rules"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalHash computes SHA-256 over a deterministic JSON serialization
// of the rule list (rules sorted by id so hash is order-independent of
// how callers happened to submit them).
func CanonicalHash(rules []Rule) string {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	b, _ := json.Marshal(sorted)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EvaluationContext merges credential attributes with runtime context
// (time, requested resource/action) for condition field-path resolution.
type EvaluationContext map[string]any

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

type EvaluationResult struct {
	Decision        Decision
	MatchedRuleID   string
	AllowedActions  []string
	Reason          string
	PolicyID        string
	PolicyVersion   int
	PolicyHash      string
	EvaluatedAt     time.Time
	DurationMs      float64
}

// Evaluator implements the two-pass first-deny-wins / first-allow-wins /
// default-deny algorithm of §4.3.
type Evaluator struct{}

func NewEvaluator() *Evaluator { return &Evaluator{} }

func (e *Evaluator) Evaluate(p *Policy, ctx EvaluationContext, requestedActions []string) EvaluationResult {
	start := time.Now()
	rules := make([]Rule, len(p.Rules))
	copy(rules, p.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	result := EvaluationResult{
		PolicyID:      p.ID,
		PolicyVersion: p.Version,
		PolicyHash:    p.Hash,
	}

	for _, r := range rules {
		if r.Effect != EffectDeny {
			continue
		}
		if ruleMatches(r, ctx, requestedActions) {
			result.Decision = DecisionDeny
			result.MatchedRuleID = r.ID
			result.EvaluatedAt = start
			result.DurationMs = msSince(start)
			return result
		}
	}

	for _, r := range rules {
		if r.Effect != EffectAllow {
			continue
		}
		if ruleMatches(r, ctx, requestedActions) {
			result.Decision = DecisionAllow
			result.MatchedRuleID = r.ID
			result.AllowedActions = intersect(requestedActions, r.Actions)
			result.EvaluatedAt = start
			result.DurationMs = msSince(start)
			return result
		}
	}

	result.Decision = DecisionDeny
	result.Reason = "no matching rule"
	result.EvaluatedAt = start
	result.DurationMs = msSince(start)
	return result
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func ruleMatches(r Rule, ctx EvaluationContext, requested []string) bool {
	if len(requested) == 0 {
		return false
	}
	if !actionsIntersect(requested, r.Actions) {
		return false
	}
	for _, c := range r.Conditions {
		if !conditionMatches(c, ctx) {
			return false
		}
	}
	return true
}

func actionsIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	for _, x := range a {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, x := range a {
		if _, ok := set[x]; ok {
			out = append(out, x)
		}
	}
	return out
}

func conditionMatches(c Condition, ctx EvaluationContext) bool {
	fieldVal, ok := resolveFieldPath(c.FieldPath, ctx)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEq:
		return fmt.Sprint(fieldVal) == fmt.Sprint(c.Value)
	case OpNeq:
		return fmt.Sprint(fieldVal) != fmt.Sprint(c.Value)
	case OpIn:
		return valueInSequence(c.Value, fieldVal)
	case OpContains:
		return containsMatch(fieldVal, c.Value)
	case OpGt, OpLt, OpGte, OpLte:
		return compareNumeric(fieldVal, c.Value, c.Operator)
	default:
		return false
	}
}

func resolveFieldPath(path string, ctx EvaluationContext) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = map[string]any(ctx)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func valueInSequence(seq any, target any) bool {
	items, ok := seq.([]any)
	if !ok {
		return false
	}
	for _, it := range items {
		if fmt.Sprint(it) == fmt.Sprint(target) {
			return true
		}
	}
	return false
}

func containsMatch(field any, needle any) bool {
	switch f := field.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(f, n)
	case []any:
		for _, it := range f {
			if fmt.Sprint(it) == fmt.Sprint(needle) {
				return true
			}
		}
	}
	return false
}

func compareNumeric(field any, value any, op Operator) bool {
	fv, ok1 := toFloat(field)
	vv, ok2 := toFloat(value)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpGt:
		return fv > vv
	case OpLt:
		return fv < vv
	case OpGte:
		return fv >= vv
	case OpLte:
		return fv <= vv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
