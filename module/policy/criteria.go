package policy

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/quorumkey/quorumkey/model"
)

// amountPattern guards big.Int parsing of stored amount strings. Anything
// else ("1e18", hex, whitespace) is rejected outright rather than parsed
// leniently.
var amountPattern = regexp.MustCompile(`^-?\d+$`)

func parseAmount(raw string) (*big.Int, error) {
	if !amountPattern.MatchString(raw) {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	return amount, nil
}

// checkCriterion evaluates one typed criterion against the context and
// returns a violation if the request does not satisfy it.
func checkCriterion(policyID string, criterionType model.PolicyType, config model.PolicyConfig, pctx model.PolicyContext) *model.PolicyViolation {

	switch criterionType {

	case model.PolicyTypeSpendingLimit:
		return checkLimit(policyID, criterionType, config.MaxWei, pctx.ValueWei, nil)

	case model.PolicyTypeDailyLimit:
		return checkLimit(policyID, criterionType, config.MaxWei, pctx.ValueWei, pctx.DailySpendWei)

	case model.PolicyTypeMonthlyLimit:
		return checkLimit(policyID, criterionType, config.MaxWei, pctx.ValueWei, pctx.MonthlySpendWei)

	case model.PolicyTypeAllowedContracts:
		if pctx.ToAddress == nil {
			if config.AllowDeploy {
				return nil
			}
			return violation(policyID, criterionType, "contract deployment not permitted")
		}
		if containsAddress(config.AllowedAddresses, pctx.ToAddress.Hex()) {
			return nil
		}
		return violation(policyID, criterionType, fmt.Sprintf("destination %s not in allow-list", pctx.ToAddress.Hex()))

	case model.PolicyTypeAllowedFunctions:
		// a plain value transfer carries no selector and is always allowed
		if pctx.FunctionSelector == "" {
			return nil
		}
		if containsSelector(config.AllowedFunctions, pctx.FunctionSelector) {
			return nil
		}
		return violation(policyID, criterionType, fmt.Sprintf("function %s not in allow-list", pctx.FunctionSelector))

	case model.PolicyTypeBlockedAddresses:
		// deployments have no destination and are never blocked here
		if pctx.ToAddress == nil {
			return nil
		}
		if containsAddress(config.BlockedAddresses, pctx.ToAddress.Hex()) {
			return violation(policyID, criterionType, fmt.Sprintf("destination %s is blocked", pctx.ToAddress.Hex()))
		}
		return nil

	case model.PolicyTypeRateLimit:
		if pctx.RequestCountLastHour < config.MaxPerHour {
			return nil
		}
		return violation(policyID, criterionType,
			fmt.Sprintf("request rate %d reached limit %d/hour", pctx.RequestCountLastHour, config.MaxPerHour))

	case model.PolicyTypeTimeWindow:
		if hourInWindow(pctx.HourUTC, config.StartHour, config.EndHour) {
			return nil
		}
		return violation(policyID, criterionType,
			fmt.Sprintf("hour %d outside window [%d,%d]", pctx.HourUTC, config.StartHour, config.EndHour))

	default:
		return violation(policyID, criterionType, fmt.Sprintf("unknown policy type %q", criterionType))
	}
}

// checkLimit validates value (+ optional rolling spend) <= maxWei.
func checkLimit(policyID string, criterionType model.PolicyType, maxWei string, value *big.Int, rolling *big.Int) *model.PolicyViolation {
	limit, err := parseAmount(maxWei)
	if err != nil {
		return violation(policyID, criterionType, err.Error())
	}
	total := new(big.Int)
	if value != nil {
		total.Set(value)
	}
	if rolling != nil {
		total.Add(total, rolling)
	}
	if total.Cmp(limit) <= 0 {
		return nil
	}
	return violation(policyID, criterionType,
		fmt.Sprintf("amount %s exceeds limit %s", total.String(), limit.String()))
}

// hourInWindow checks an hour-of-day range. start > end means the window
// spans midnight: {22,6} accepts 23 and 2 but rejects 12.
func hourInWindow(hour int, start int, end int) bool {
	if start > end {
		return hour >= start || hour <= end
	}
	return hour >= start && hour <= end
}

func containsAddress(list []string, address string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, address) {
			return true
		}
	}
	return false
}

func containsSelector(list []string, selector string) bool {
	normalized := normalizeSelector(selector)
	for _, entry := range list {
		if normalizeSelector(entry) == normalized {
			return true
		}
	}
	return false
}

func normalizeSelector(selector string) string {
	return strings.TrimPrefix(strings.ToLower(selector), "0x")
}

func violation(policyID string, criterionType model.PolicyType, reason string) *model.PolicyViolation {
	return &model.PolicyViolation{
		PolicyID: policyID,
		Type:     criterionType,
		Reason:   reason,
	}
}
