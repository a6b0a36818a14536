// Package kpi implements the read-side financial rollups: at-risk exposure,
// proposed and realized savings, and action completion rates over a window.
package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

// Risk band boundaries used for the health breakdown.
const (
	mediumRiskFloor = 30.0
	highRiskFloor   = 70.0
)

// Filter narrows a rollup to a date range and optional store/category.
type Filter struct {
	From     time.Time
	To       time.Time
	StoreID  string
	Category string
}

// Report is the rollup output. Every field is exactly zero on an empty input
// set; an empty range is a valid answer, not an error.
type Report struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalAtRiskValue  decimal.Decimal `json:"total_at_risk_value"`
	ProposedSavings   decimal.Decimal `json:"proposed_savings"`
	RealizedSavings   decimal.Decimal `json:"realized_savings"`
	CompletionRate    float64         `json:"action_completion_rate"`
	ActionsTotal      int             `json:"actions_total"`
	ActionsDone       int             `json:"actions_done"`
	HighRiskBatches   int             `json:"high_risk_batches"`
	MediumRiskBatches int             `json:"medium_risk_batches"`
	LowRiskBatches    int             `json:"low_risk_batches"`
	AvgDaysToExpiry   float64         `json:"avg_days_to_expiry"`
}

// Service loads rollup inputs through the repositories and delegates to the
// pure Aggregate function. It has no side effects and is safe to call
// repeatedly.
type Service struct {
	risks    repository.RiskRepository
	actions  repository.ActionRepository
	outcomes repository.OutcomeRepository
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewService wires a KPI service.
func NewService(risks repository.RiskRepository, actions repository.ActionRepository, outcomes repository.OutcomeRepository, products repository.ProductRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{risks: risks, actions: actions, outcomes: outcomes, products: products, logger: logger}
}

// Overview computes the rollup for the filter. The at-risk exposure uses the
// risk rows of the filter's end date, the most recent snapshot in range.
func (s *Service) Overview(ctx context.Context, f Filter) (Report, error) {
	var productIDs []string
	categories := make(map[string]string)
	if s.products != nil {
		products, err := s.products.ListAll(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("load products: %w", err)
		}
		for _, p := range products {
			categories[p.ProductID] = p.Category
			if f.Category != "" && p.Category == f.Category {
				productIDs = append(productIDs, p.ProductID)
			}
		}
		if f.Category != "" && len(productIDs) == 0 {
			// Unknown category matches nothing.
			return Aggregate(f, nil, nil, nil, categories), nil
		}
	}

	risks, err := s.risks.Query(ctx, repository.RiskQuery{
		SnapshotDate: models.DateOf(f.To),
		StoreID:      f.StoreID,
		ProductIDs:   productIDs,
	})
	if err != nil {
		return Report{}, fmt.Errorf("load risk rows: %w", err)
	}

	actions, err := s.actions.ListCreatedBetween(ctx, f.From, f.To)
	if err != nil {
		return Report{}, fmt.Errorf("load actions: %w", err)
	}

	outcomes, err := s.outcomes.ListMeasuredBetween(ctx, f.From, f.To)
	if err != nil {
		return Report{}, fmt.Errorf("load outcomes: %w", err)
	}

	return Aggregate(f, risks, actions, outcomes, categories), nil
}

// Aggregate is the pure rollup: total at-risk value over the risk rows,
// proposed savings over PROPOSED and APPROVED actions, realized savings over
// outcomes of DONE actions, and completion rate DONE / non-REJECTED.
func Aggregate(f Filter, risks []models.RiskScore, actions []models.Action, outcomes []models.ActionOutcome, categories map[string]string) Report {
	report := Report{From: models.DateOf(f.From), To: models.DateOf(f.To)}

	var daysSum int
	for _, r := range risks {
		report.TotalAtRiskValue = report.TotalAtRiskValue.Add(r.AtRiskValue)
		daysSum += r.DaysToExpiry
		switch {
		case r.RiskScore >= highRiskFloor:
			report.HighRiskBatches++
		case r.RiskScore >= mediumRiskFloor:
			report.MediumRiskBatches++
		default:
			report.LowRiskBatches++
		}
	}
	if len(risks) > 0 {
		report.AvgDaysToExpiry = float64(daysSum) / float64(len(risks))
	}

	done := make(map[string]bool)
	nonRejected := 0
	for _, a := range actions {
		if !matchesAction(f, a, categories) {
			continue
		}
		report.ActionsTotal++
		switch a.Status {
		case models.StatusProposed, models.StatusApproved:
			report.ProposedSavings = report.ProposedSavings.Add(a.ExpectedSavings)
			nonRejected++
		case models.StatusDone:
			done[a.ActionID] = true
			report.ActionsDone++
			nonRejected++
		}
	}

	for _, o := range outcomes {
		if done[o.ActionID] {
			report.RealizedSavings = report.RealizedSavings.Add(o.RecoveredValue)
		}
	}

	if nonRejected > 0 {
		report.CompletionRate = float64(report.ActionsDone) / float64(nonRejected)
	}

	return report
}

func matchesAction(f Filter, a models.Action, categories map[string]string) bool {
	if f.StoreID != "" && a.SourceStore != f.StoreID {
		return false
	}
	if f.Category != "" && categories[a.ProductID] != f.Category {
		return false
	}
	return true
}
