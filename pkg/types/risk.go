package types

// RiskDecision is the outcome of an order evaluation
type RiskDecision string

const (
	DecisionAllow RiskDecision = "ALLOW"
	DecisionBlock RiskDecision = "BLOCK"
)

// BlockCode identifies which policy produced a BLOCK
type BlockCode string

const (
	BlockNone               BlockCode = ""
	BlockConcurrencyLimit   BlockCode = "CONCURRENCY_LIMIT"
	BlockCircuitBreaker     BlockCode = "CIRCUIT_BREAKER"
	BlockInvalidAccount     BlockCode = "INVALID_ACCOUNT"
	BlockInvalidSignal      BlockCode = "INVALID_SIGNAL"
	BlockOrderSize          BlockCode = "ORDER_SIZE"
	BlockExposureLimit      BlockCode = "EXPOSURE_LIMIT"
	BlockAssetClassExposure BlockCode = "ASSET_CLASS_EXPOSURE"
)

// PositionSize is the admitted order size
type PositionSize struct {
	Quantity float64 `json:"quantity"`
	Value    float64 `json:"value"`
}

// RiskEvaluation is the result of Risk Manager's order evaluation. A BLOCK
// always carries a Code and a non-empty Reason.
type RiskEvaluation struct {
	Decision     RiskDecision  `json:"decision"`
	Code         BlockCode     `json:"code,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	PositionSize *PositionSize `json:"position_size,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// Allowed is a shorthand for Decision == ALLOW
func (e RiskEvaluation) Allowed() bool {
	return e.Decision == DecisionAllow
}
