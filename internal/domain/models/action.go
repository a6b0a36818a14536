package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType enumerates the remediation kinds the generator can propose.
type ActionType string

const (
	ActionTransfer  ActionType = "TRANSFER"
	ActionMarkdown  ActionType = "MARKDOWN"
	ActionLiquidate ActionType = "LIQUIDATE"
)

// Valid reports whether the value is one of the closed set.
func (t ActionType) Valid() bool {
	return t == ActionTransfer || t == ActionMarkdown || t == ActionLiquidate
}

// ActionStatus enumerates the lifecycle states of a proposed action. The
// pipeline only ever creates actions in StatusProposed; every transition is
// performed by the external approval workflow.
type ActionStatus string

const (
	StatusProposed ActionStatus = "PROPOSED"
	StatusApproved ActionStatus = "APPROVED"
	StatusDone     ActionStatus = "DONE"
	StatusRejected ActionStatus = "REJECTED"
)

// Valid reports whether the value is one of the closed set.
func (s ActionStatus) Valid() bool {
	switch s {
	case StatusProposed, StatusApproved, StatusDone, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo encodes the allowed approval-workflow transitions:
// PROPOSED -> APPROVED or REJECTED, APPROVED -> DONE or REJECTED.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	switch s {
	case StatusProposed:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusDone || next == StatusRejected
	}
	return false
}

// Action is one recommended remediation for an at-risk batch, together with
// its estimated financial benefit. DestStore and DiscountPct are only set for
// transfers and markdowns respectively.
type Action struct {
	ActionID        string          `json:"action_id"`
	CreatedAt       time.Time       `json:"created_at"`
	SnapshotDate    time.Time       `json:"snapshot_date"`
	Type            ActionType      `json:"action_type"`
	SourceStore     string          `json:"source_store"`
	DestStore       string          `json:"dest_store,omitempty"`
	ProductID       string          `json:"product_id"`
	BatchID         string          `json:"batch_id"`
	Quantity        int             `json:"quantity"`
	DiscountPct     float64         `json:"discount_pct,omitempty"`
	ExpectedSavings decimal.Decimal `json:"expected_savings"`
	Status          ActionStatus    `json:"status"`
}

// BatchKey identifies the batch the action was proposed for within its
// snapshot run; the action store enforces uniqueness on it so overlapping
// runs cannot produce duplicate proposals.
func (a Action) BatchKey() string {
	return a.SnapshotDate.Format(DateLayout) + "|" + a.SourceStore + "|" + a.ProductID + "|" + a.BatchID
}

// ActionOutcome records the measured result of a completed action. Rows are
// append-only and written by the external operational process.
type ActionOutcome struct {
	ActionID       string          `json:"action_id"`
	MeasuredAt     time.Time       `json:"measured_at"`
	RecoveredValue decimal.Decimal `json:"recovered_value"`
	ClearedUnits   int             `json:"cleared_units"`
	Notes          string          `json:"notes,omitempty"`
}
