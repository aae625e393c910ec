/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the caller's company with
	realistic data for demos and manual testing. Each scenario goes through
	the same services as real traffic (rules, direct worker creation,
	overtime adjustments, request submission), so the audit log shows every
	seeded change.

AVAILABLE SCENARIOS:

	small-team:     Payroll rule and three workers, one inactive
	approval-queue: Two workers plus a queue of pending requests, one of
	                which fails on approval (negative overtime)
	payroll-month:  Payroll rule and five workers with varied overtime

HOW SCENARIOS WORK:
 1. Save the company payroll rule (if the scenario has one)
 2. Create workers directly
 3. Apply overtime adjustments
 4. Submit pending requests

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "approval-queue"}

NOTE:

	Scenarios add data; they never delete. Routes are only mounted when
	Options.EnableScenarios is set (never in production).

SEE ALSO:
  - server.go: Route registration
  - approval/service.go: Services used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "Payroll rule (8h, 400/day, 100/OT hour) and three workers, one inactive",
	},
	{
		ID:          "approval-queue",
		Name:        "Approval Queue",
		Description: "Pending hire, overtime and group requests; one deduction fails on approval",
	},
	{
		ID:          "payroll-month",
		Name:        "Payroll Month",
		Description: "Five workers with varied overtime, ready for a monthly payroll run",
	},
}

type scenarioWorker struct {
	name     string
	bank     string
	account  string
	overtime string
	inactive bool
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the caller's company with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	ac := authFrom(r)

	var err error
	switch req.ScenarioID {
	case "small-team":
		err = h.loadSmallTeamScenario(ctx, ac)
	case "approval-queue":
		err = h.loadApprovalQueueScenario(ctx, ac)
	case "payroll-month":
		err = h.loadPayrollMonthScenario(ctx, ac)
	default:
		writeError(w, http.StatusBadRequest, codeValidation, "Unknown scenario", nil)
		return
	}

	if err != nil {
		h.Log.WithError(err).WithField("scenario", req.ScenarioID).Error("scenario load failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load scenario", nil)
		return
	}

	h.Log.WithField("scenario", req.ScenarioID).WithField("company_id", ac.CompanyID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallTeamScenario(ctx context.Context, ac labor.AuthContext) error {
	if err := h.saveStandardRule(ctx, ac); err != nil {
		return err
	}
	_, err := h.createScenarioWorkers(ctx, ac, []scenarioWorker{
		{name: "Abebe Kebede", bank: "CBE", account: "1000123", overtime: "6"},
		{name: "Hana Tesfaye", bank: "Awash", account: "2000456", overtime: "2.5"},
		{name: "Dawit Alemu", bank: "CBE", account: "1000789", overtime: "1", inactive: true},
	})
	return err
}

func (h *Handler) loadApprovalQueueScenario(ctx context.Context, ac labor.AuthContext) error {
	ids, err := h.createScenarioWorkers(ctx, ac, []scenarioWorker{
		{name: "Selam Girma", bank: "CBE", account: "3000111", overtime: "4"},
		{name: "Yonas Bekele", bank: "Dashen", account: "4000222", overtime: "1"},
	})
	if err != nil {
		return err
	}

	// Approved oldest first, Yonas goes 1 -> 3 -> 1, so the last deduction
	// fails and stays pending.
	payloads := []labor.Payload{
		labor.NewWorkerPayload{Name: "Meron Haile", BankName: "Awash", AccountNumber: "2000999"},
		labor.OvertimeIndividualPayload{WorkerID: ids[0], Hours: decimal.NewFromInt(3)},
		labor.OvertimeGroupPayload{Hours: decimal.NewFromInt(2)},
		labor.OvertimeIndividualPayload{WorkerID: ids[1], Hours: decimal.NewFromInt(2), Deduct: true},
		labor.OvertimeIndividualPayload{WorkerID: ids[1], Hours: decimal.NewFromInt(5), Deduct: true},
	}
	for _, p := range payloads {
		if _, err := h.Approvals.Submit(ctx, ac, p); err != nil {
			return fmt.Errorf("submit %s: %w", p.Type(), err)
		}
	}
	return nil
}

func (h *Handler) loadPayrollMonthScenario(ctx context.Context, ac labor.AuthContext) error {
	if err := h.saveStandardRule(ctx, ac); err != nil {
		return err
	}
	_, err := h.createScenarioWorkers(ctx, ac, []scenarioWorker{
		{name: "Almaz Tadesse", bank: "CBE", account: "5000001", overtime: "0"},
		{name: "Bereket Wolde", bank: "CBE", account: "5000002", overtime: "12"},
		{name: "Chaltu Abdi", bank: "Awash", account: "5000003", overtime: "7.5"},
		{name: "Dereje Mamo", bank: "Dashen", account: "5000004", overtime: "3.25"},
		{name: "Eden Asfaw", bank: "Awash", account: "5000005", overtime: "20", inactive: true},
	})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) saveStandardRule(ctx context.Context, ac labor.AuthContext) error {
	_, err := h.Rules.Save(ctx, ac, 8, decimal.NewFromInt(400), decimal.NewFromInt(100))
	return err
}

func (h *Handler) createScenarioWorkers(ctx context.Context, ac labor.AuthContext, specs []scenarioWorker) ([]labor.WorkerID, error) {
	ids := make([]labor.WorkerID, 0, len(specs))
	for _, s := range specs {
		worker, err := h.Approvals.CreateWorker(ctx, ac, labor.NewWorkerPayload{
			Name:          s.name,
			BankName:      s.bank,
			AccountNumber: s.account,
		})
		if err != nil {
			return nil, fmt.Errorf("create worker %s: %w", s.name, err)
		}

		if hours := decimal.RequireFromString(s.overtime); hours.IsPositive() {
			p := labor.OvertimeIndividualPayload{WorkerID: worker.ID, Hours: hours}
			if _, err := h.Approvals.AdjustOvertime(ctx, ac, p); err != nil {
				return nil, fmt.Errorf("seed overtime for %s: %w", s.name, err)
			}
		}
		if s.inactive {
			if err := h.Approvals.SetWorkerStatus(ctx, ac, worker.ID, labor.WorkerInactive); err != nil {
				return nil, err
			}
		}
		ids = append(ids, worker.ID)
	}
	return ids, nil
}
