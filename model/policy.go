package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PolicyType enumerates the supported policy criteria.
type PolicyType string

const (
	PolicyTypeSpendingLimit    PolicyType = "spending_limit"
	PolicyTypeDailyLimit       PolicyType = "daily_limit"
	PolicyTypeMonthlyLimit     PolicyType = "monthly_limit"
	PolicyTypeAllowedContracts PolicyType = "allowed_contracts"
	PolicyTypeAllowedFunctions PolicyType = "allowed_functions"
	PolicyTypeBlockedAddresses PolicyType = "blocked_addresses"
	PolicyTypeRateLimit        PolicyType = "rate_limit"
	PolicyTypeTimeWindow       PolicyType = "time_window"
)

// PolicyConfig holds the per-type configuration. Only the fields relevant to
// the policy's type are consulted. Wei amounts are decimal strings so that
// values beyond uint64 survive storage round-trips unmangled.
type PolicyConfig struct {
	MaxWei            string   `json:"maxWei,omitempty"`
	AllowedAddresses  []string `json:"allowedAddresses,omitempty"`
	AllowDeploy       bool     `json:"allowDeploy,omitempty"`
	AllowedFunctions  []string `json:"allowedFunctions,omitempty"`
	BlockedAddresses  []string `json:"blockedAddresses,omitempty"`
	MaxPerHour        int      `json:"maxPerHour,omitempty"`
	StartHour         int      `json:"startHour,omitempty"`
	EndHour           int      `json:"endHour,omitempty"`
}

// Policy is the legacy flat model: one policy is one typed criterion.
type Policy struct {
	ID      string
	Type    PolicyType
	Enabled bool
	Config  PolicyConfig
}

// RuleAction determines how a policy rule's criteria are interpreted.
type RuleAction string

const (
	// RuleActionAccept requires every criterion of the rule to hold; each
	// criterion that does not hold produces a violation.
	RuleActionAccept RuleAction = "accept"
	// RuleActionReject denies the request when every criterion of the rule
	// holds, producing a single violation for the rule.
	RuleActionReject RuleAction = "reject"
)

// RuleCriterion is one typed check inside a policy rule.
type RuleCriterion struct {
	Type   PolicyType
	Config PolicyConfig
}

// PolicyRule is one ordered entry of a policy document.
type PolicyRule struct {
	ID       string
	Action   RuleAction
	Enabled  bool
	Criteria []RuleCriterion
}

// PolicyDocument is the rule-based policy model. It is evaluated as a whole
// against one PolicyContext and produces the same result shape as the flat
// model.
type PolicyDocument struct {
	ID    string
	Name  string
	Rules []PolicyRule
}

// PolicyContext is a frozen snapshot of everything policies may evaluate for
// a single pending request. It is built once per request and never mutated
// during evaluation.
type PolicyContext struct {
	SignerAddress        common.Address
	ToAddress            *common.Address // nil for contract deployment
	ValueWei             *big.Int
	FunctionSelector     string // 4-byte hex selector, empty for plain transfers
	ChainID              *big.Int
	DailySpendWei        *big.Int
	MonthlySpendWei      *big.Int
	RequestCountLastHour int
	HourUTC              int
	Calldata             []byte
	CallerIP             string
	Timestamp            time.Time
}

// PolicyViolation describes why a single policy or rule denied the request.
type PolicyViolation struct {
	PolicyID string     `json:"policyId"`
	Type     PolicyType `json:"type"`
	Reason   string     `json:"reason"`
}

// PolicyResult is the outcome of evaluating all enabled policies or rules
// against one context. EvaluationTime is recorded for audit logging, not for
// gating.
type PolicyResult struct {
	Allowed        bool
	Violations     []PolicyViolation
	EvaluatedCount int
	EvaluationTime time.Duration
}
