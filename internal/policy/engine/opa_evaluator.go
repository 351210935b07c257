package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	backenddomain "dcv-session-gateway/internal/backend/domain"
)

const policyQuery = "data.dcv.session_target"

// DefaultPolicy accepts a backend whose type tag carries the configured value and whose user tag is set.
const DefaultPolicy = `package dcv.session_target

default eligible := false

default username := ""

username := input.backend.tags[input.rules.user_tag]

eligible if {
	input.backend.tags[input.rules.type_tag] == input.rules.type_value
	username != ""
}
`

// ErrNoResult is returned when the policy query produces no value, e.g. a custom policy in the wrong package.
var ErrNoResult = errors.New("policy query returned no result")

// OPAEvaluator evaluates backend eligibility with an OPA Rego policy prepared once at construction.
type OPAEvaluator struct {
	rules  Rules
	policy string
	query  rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultPolicy when empty) and prepares the eligibility query.
// A custom policy must declare package dcv.session_target and define eligible and username.
func NewOPAEvaluator(ctx context.Context, rules Rules, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"session_target.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile eligibility policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare eligibility query: %w", err)
	}
	return &OPAEvaluator{rules: rules, policy: policy, query: pq}, nil
}

// HealthCheck compiles the configured policy afresh and evaluates it against a fixed backend.
// Does not touch the backend directory. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"session_target.rego": e.policy})
	if err != nil {
		return fmt.Errorf("compile eligibility policy: %w", err)
	}
	probe := &backenddomain.Backend{
		ID:      "health-probe",
		Address: "127.0.0.1",
		Tags:    map[string]string{e.rules.TypeTag: e.rules.TypeValue, e.rules.UserTag: "probe"},
	}
	rs, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
		rego.Input(e.buildInput(probe)),
	).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval eligibility policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return ErrNoResult
	}
	return nil
}

// EvaluateEligibility runs the prepared query for backend. An eligible decision always carries a username.
func (e *OPAEvaluator) EvaluateEligibility(ctx context.Context, backend *backenddomain.Backend) (Decision, error) {
	if backend == nil {
		return Decision{}, nil
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(e.buildInput(backend)))
	if err != nil {
		return Decision{}, fmt.Errorf("eval eligibility policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, ErrNoResult
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, ErrNoResult
	}

	var out Decision
	if v, ok := doc["eligible"].(bool); ok {
		out.Eligible = v
	}
	if v, ok := doc["username"].(string); ok {
		out.Username = v
	}
	if out.Username == "" {
		out.Eligible = false
	}
	return out, nil
}

func (e *OPAEvaluator) buildInput(backend *backenddomain.Backend) map[string]interface{} {
	tags := make(map[string]interface{}, len(backend.Tags))
	for k, v := range backend.Tags {
		tags[k] = v
	}
	return map[string]interface{}{
		"backend": map[string]interface{}{
			"id":      backend.ID,
			"address": backend.Address,
			"tags":    tags,
		},
		"rules": map[string]interface{}{
			"type_tag":   e.rules.TypeTag,
			"type_value": e.rules.TypeValue,
			"user_tag":   e.rules.UserTag,
		},
	}
}
