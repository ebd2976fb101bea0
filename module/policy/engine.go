// Package policy implements the rules engine gating every signing request.
//
// Two evaluators share one result contract: Evaluate handles the legacy flat
// model where each policy is a single typed criterion, EvaluateDocument
// handles ordered rule lists. Both evaluate every enabled entry rather than
// short-circuiting, so a denied request carries the complete violation list
// for observability.
package policy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
)

// Engine is a stateless evaluator; the same instance serves all signers.
type Engine struct {
	log     zerolog.Logger
	metrics module.PolicyMetrics
}

func NewEngine(log zerolog.Logger, metrics module.PolicyMetrics) *Engine {
	return &Engine{
		log:     log.With().Str("component", "policy_engine").Logger(),
		metrics: metrics,
	}
}

// Evaluate runs all enabled flat policies against the context. Disabled
// policies are skipped entirely and not counted.
func (e *Engine) Evaluate(policies []model.Policy, pctx model.PolicyContext) model.PolicyResult {

	start := time.Now()

	var violations []model.PolicyViolation
	evaluated := 0
	for _, pol := range policies {
		if !pol.Enabled {
			continue
		}
		evaluated++
		if v := checkCriterion(pol.ID, pol.Type, pol.Config, pctx); v != nil {
			violations = append(violations, *v)
		}
	}

	return e.finish(start, evaluated, violations)
}

// EvaluateDocument runs all enabled rules of the document against the
// context. An accept rule requires all of its criteria to hold and yields
// one violation per unmet criterion; a reject rule yields a single violation
// when all of its criteria hold.
func (e *Engine) EvaluateDocument(doc model.PolicyDocument, pctx model.PolicyContext) model.PolicyResult {

	start := time.Now()

	var violations []model.PolicyViolation
	evaluated := 0
	for _, rule := range doc.Rules {
		if !rule.Enabled {
			continue
		}
		evaluated++

		switch rule.Action {

		case model.RuleActionAccept:
			for _, criterion := range rule.Criteria {
				if v := checkCriterion(rule.ID, criterion.Type, criterion.Config, pctx); v != nil {
					violations = append(violations, *v)
				}
			}

		case model.RuleActionReject:
			matched := len(rule.Criteria) > 0
			for _, criterion := range rule.Criteria {
				if v := checkCriterion(rule.ID, criterion.Type, criterion.Config, pctx); v != nil {
					matched = false
					break
				}
			}
			if matched {
				violations = append(violations, model.PolicyViolation{
					PolicyID: rule.ID,
					Type:     rule.Criteria[0].Type,
					Reason:   "request matched reject rule",
				})
			}

		default:
			violations = append(violations, model.PolicyViolation{
				PolicyID: rule.ID,
				Reason:   "unknown rule action",
			})
		}
	}

	return e.finish(start, evaluated, violations)
}

func (e *Engine) finish(start time.Time, evaluated int, violations []model.PolicyViolation) model.PolicyResult {

	result := model.PolicyResult{
		Allowed:        len(violations) == 0,
		Violations:     violations,
		EvaluatedCount: evaluated,
		EvaluationTime: time.Since(start),
	}

	e.metrics.PolicyEvaluated(result.Allowed, len(violations), result.EvaluationTime)

	if !result.Allowed {
		e.log.Info().
			Int("evaluated", evaluated).
			Int("violations", len(violations)).
			Dur("elapsed", result.EvaluationTime).
			Msg("request denied by policy")
	}

	return result
}
