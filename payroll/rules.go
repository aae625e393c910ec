package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// Rules maintains each company's payroll rule.
type Rules struct {
	Store labor.TxStore
	Now   func() time.Time
	NewID func() string
}

func NewRules(store labor.TxStore) *Rules {
	return &Rules{Store: store, Now: time.Now, NewID: uuid.NewString}
}

// Get returns labor.ErrRuleNotConfigured when nothing was saved yet.
func (r *Rules) Get(ctx context.Context, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	return r.Store.GetRule(ctx, companyID)
}

// Save validates and upserts the caller's company rule.
func (r *Rules) Save(ctx context.Context, ac labor.AuthContext, standardHours int, dailyRate, overtimeRate decimal.Decimal) (*labor.PayrollRule, error) {
	now := r.Now().UTC()
	rule := labor.PayrollRule{
		CompanyID:                  ac.CompanyID,
		StandardWorkingHoursPerDay: standardHours,
		DailyRate:                  dailyRate,
		OvertimeRate:               overtimeRate,
		UpdatedAt:                  now,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	err := r.Store.WithTx(ctx, func(tx labor.Stores) error {
		if err := tx.SaveRule(ctx, rule); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, labor.AuditEntry{
			ID:        r.NewID(),
			CompanyID: ac.CompanyID,
			ActorID:   ac.UserID,
			Action:    labor.AuditRuleChanged,
			Detail: map[string]any{
				"standard_hours_per_day": standardHours,
				"daily_rate":             dailyRate.String(),
				"overtime_rate":          overtimeRate.String(),
			},
			At: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
