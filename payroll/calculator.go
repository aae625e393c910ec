/*
Package payroll computes per-worker pay for an inclusive date range.

FORMULA (per worker):
  daysWorked    = period.Days() if the worker is active, else 0
  regularHours  = daysWorked * rule.StandardWorkingHoursPerDay
  overtimeHours = worker.OvertimeHours (live counter, not range-filtered)
  dailyPay      = daysWorked * rule.DailyRate
  overtimePay   = overtimeHours * rule.OvertimeRate
  totalPay      = dailyPay + overtimePay

Status is read as of now; historical status changes inside the range are
not considered.

ERRORS:
  labor.ErrInvalidPeriod     end before start
  labor.ErrRuleNotConfigured company has no rule (never defaulted)

Output is ordered by worker id and fully determined by store state.
*/
package payroll

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// LineItem is one worker's row. Computed, never persisted.
type LineItem struct {
	WorkerID      labor.WorkerID
	Name          string
	DaysWorked    int
	RegularHours  int
	OvertimeHours decimal.Decimal
	DailyPay      decimal.Decimal
	OvertimePay   decimal.Decimal
	TotalPay      decimal.Decimal
	BankName      string
	AccountNumber string
}

type Calculator struct {
	Workers labor.WorkerStore
	Rates   labor.RateProvider
}

func NewCalculator(workers labor.WorkerStore, rates labor.RateProvider) *Calculator {
	return &Calculator{Workers: workers, Rates: rates}
}

// Compute returns one line per worker of the company, ordered by worker id.
func (c *Calculator) Compute(ctx context.Context, companyID labor.CompanyID, period labor.Period) ([]LineItem, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	rule, err := c.Rates.GetRule(ctx, companyID)
	if err != nil {
		return nil, err
	}

	workers, err := c.Workers.ListWorkers(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	sort.SliceStable(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })

	days := period.Days()
	items := make([]LineItem, 0, len(workers))
	for _, w := range workers {
		items = append(items, lineFor(w, *rule, days))
	}
	return items, nil
}

func lineFor(w labor.Worker, rule labor.PayrollRule, daysInRange int) LineItem {
	daysWorked := 0
	if w.IsActive() {
		daysWorked = daysInRange
	}

	dailyPay := rule.DailyRate.Mul(decimal.NewFromInt(int64(daysWorked)))
	overtimePay := w.OvertimeHours.Mul(rule.OvertimeRate)

	return LineItem{
		WorkerID:      w.ID,
		Name:          w.Name,
		DaysWorked:    daysWorked,
		RegularHours:  daysWorked * rule.StandardWorkingHoursPerDay,
		OvertimeHours: w.OvertimeHours,
		DailyPay:      dailyPay,
		OvertimePay:   overtimePay,
		TotalPay:      dailyPay.Add(overtimePay),
		BankName:      w.BankName,
		AccountNumber: w.AccountNumber,
	}
}

// =============================================================================
// SUMMARY - Totals row over a computed payroll
// =============================================================================

type Summary struct {
	Workers       int
	DaysWorked    int
	RegularHours  int
	OvertimeHours decimal.Decimal
	DailyPay      decimal.Decimal
	OvertimePay   decimal.Decimal
	TotalPay      decimal.Decimal
}

func Summarize(items []LineItem) Summary {
	s := Summary{
		Workers:       len(items),
		OvertimeHours: decimal.Zero,
		DailyPay:      decimal.Zero,
		OvertimePay:   decimal.Zero,
		TotalPay:      decimal.Zero,
	}
	for _, it := range items {
		s.DaysWorked += it.DaysWorked
		s.RegularHours += it.RegularHours
		s.OvertimeHours = s.OvertimeHours.Add(it.OvertimeHours)
		s.DailyPay = s.DailyPay.Add(it.DailyPay)
		s.OvertimePay = s.OvertimePay.Add(it.OvertimePay)
		s.TotalPay = s.TotalPay.Add(it.TotalPay)
	}
	return s
}
