/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the domain
  model in package labor from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags, checked in decodeJSON.
  Domain rules (positive hours, non-negative rates) are re-checked by the
  domain types themselves.

DECIMALS:
  Hours and money are serialized as JSON strings ("3000", "12.5").

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/labor"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequest proposes a change for admin approval. Details may be a JSON
// object or a string holding a JSON object.
type SubmitRequest struct {
	Type    string          `json:"type" validate:"required,oneof=new_worker overtime_individual overtime_group"`
	Details json.RawMessage `json:"details" validate:"required"`
}

type CreateWorkerRequest struct {
	Name             string      `json:"name" validate:"required,max=200"`
	BankName         string      `json:"bankName" validate:"max=200"`
	AccountNumber    string      `json:"accountNumber" validate:"max=64"`
	PhotoURL         string      `json:"photoUrl" validate:"omitempty,max=2048"`
	RegistrationDate *labor.Date `json:"registrationDate"`
}

// UpdateWorkerRequest edits worker details. Omitted fields are unchanged.
type UpdateWorkerRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	BankName      *string `json:"bankName" validate:"omitempty,max=200"`
	AccountNumber *string `json:"accountNumber" validate:"omitempty,max=64"`
	PhotoURL      *string `json:"photoUrl" validate:"omitempty,max=2048"`
}

func (r UpdateWorkerRequest) Patch() labor.WorkerPatch {
	return labor.WorkerPatch{
		Name:          r.Name,
		BankName:      r.BankName,
		AccountNumber: r.AccountNumber,
		PhotoURL:      r.PhotoURL,
	}
}

type UpdateWorkerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// OvertimeRequest adjusts overtime directly, for one worker or all active ones.
type OvertimeRequest struct {
	WorkerID   string          `json:"workerId" validate:"required_without=AllWorkers,excluded_with=AllWorkers"`
	AllWorkers bool            `json:"allWorkers"`
	Hours      decimal.Decimal `json:"hours"`
	Deduct     bool            `json:"deduct"`
}

func (r OvertimeRequest) Payload() labor.Payload {
	if r.AllWorkers {
		return labor.OvertimeGroupPayload{Hours: r.Hours, Deduct: r.Deduct}
	}
	return labor.OvertimeIndividualPayload{WorkerID: labor.WorkerID(r.WorkerID), Hours: r.Hours, Deduct: r.Deduct}
}

type PayrollRuleRequest struct {
	StandardWorkingHoursPerDay int              `json:"standardWorkingHoursPerDay" validate:"required,gt=0,lte=24"`
	DailyRate                  *decimal.Decimal `json:"dailyRate" validate:"required"`
	OvertimeRate               *decimal.Decimal `json:"overtimeRate" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type WorkerDTO struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	BankName         string          `json:"bankName"`
	AccountNumber    string          `json:"accountNumber"`
	PhotoURL         string          `json:"photoUrl,omitempty"`
	RegistrationDate labor.Date      `json:"registrationDate"`
	Status           string          `json:"status"`
	OvertimeHours    decimal.Decimal `json:"overtimeHours"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func toWorkerDTO(w labor.Worker) WorkerDTO {
	return WorkerDTO{
		ID:               string(w.ID),
		Name:             w.Name,
		BankName:         w.BankName,
		AccountNumber:    w.AccountNumber,
		PhotoURL:         w.PhotoURL,
		RegistrationDate: w.RegistrationDate,
		Status:           string(w.Status),
		OvertimeHours:    w.OvertimeHours,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

type RequestDTO struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Details        json.RawMessage `json:"details"`
	Status         string          `json:"status"`
	RequestedBy    string          `json:"requestedBy"`
	LinkedWorkerID *string         `json:"linkedWorkerId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toRequestDTO(r labor.PendingRequest) RequestDTO {
	details, err := labor.EncodePayload(r.Payload)
	if err != nil {
		details = json.RawMessage("null")
	}
	dto := RequestDTO{
		ID:          string(r.ID),
		Type:        string(r.Type),
		Details:     details,
		Status:      string(r.Status),
		RequestedBy: string(r.RequestedBy),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.LinkedWorkerID != nil {
		id := string(*r.LinkedWorkerID)
		dto.LinkedWorkerID = &id
	}
	return dto
}

func toRequestDTOs(rs []labor.PendingRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

type BatchFailureDTO struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

type BatchResultDTO struct {
	ApprovedCount int               `json:"approvedCount"`
	Failures      []BatchFailureDTO `json:"failures"`
}

func toBatchResultDTO(res *approval.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{ApprovedCount: res.ApprovedCount, Failures: make([]BatchFailureDTO, len(res.Failures))}
	for i, f := range res.Failures {
		_, code, _ := classify(f.Err)
		dto.Failures[i] = BatchFailureDTO{RequestID: string(f.RequestID), Code: code, Error: f.Err.Error()}
	}
	return dto
}

type OvertimeResultDTO struct {
	Workers []string `json:"workers"`
}

type PayrollRuleDTO struct {
	StandardWorkingHoursPerDay int             `json:"standardWorkingHoursPerDay"`
	DailyRate                  decimal.Decimal `json:"dailyRate"`
	OvertimeRate               decimal.Decimal `json:"overtimeRate"`
	UpdatedAt                  time.Time       `json:"updatedAt"`
}

func toPayrollRuleDTO(r labor.PayrollRule) PayrollRuleDTO {
	return PayrollRuleDTO{
		StandardWorkingHoursPerDay: r.StandardWorkingHoursPerDay,
		DailyRate:                  r.DailyRate,
		OvertimeRate:               r.OvertimeRate,
		UpdatedAt:                  r.UpdatedAt,
	}
}

type PayrollLineDTO struct {
	WorkerID      string          `json:"workerId"`
	Name          string          `json:"name"`
	DaysWorked    int             `json:"daysWorked"`
	RegularHours  int             `json:"regularHours"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`
	DailyPay      decimal.Decimal `json:"dailyPay"`
	OvertimePay   decimal.Decimal `json:"overtimePay"`
	TotalPay      decimal.Decimal `json:"totalPay"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
}

type PayrollTotalsDTO struct {
	Workers       int             `json:"workers"`
	DaysWorked    int             `json:"daysWorked"`
	RegularHours  int             `json:"regularHours"`
	OvertimeHours decimal.Decimal `json:"overtimeHours"`
	DailyPay      decimal.Decimal `json:"dailyPay"`
	OvertimePay   decimal.Decimal `json:"overtimePay"`
	TotalPay      decimal.Decimal `json:"totalPay"`
}

type PayrollResponse struct {
	Period labor.Period     `json:"period"`
	Items  []PayrollLineDTO `json:"items"`
	Totals PayrollTotalsDTO `json:"totals"`
}

func toPayrollResponse(period labor.Period, items []payroll.LineItem) PayrollResponse {
	resp := PayrollResponse{Period: period, Items: make([]PayrollLineDTO, len(items))}
	for i, it := range items {
		resp.Items[i] = PayrollLineDTO{
			WorkerID:      string(it.WorkerID),
			Name:          it.Name,
			DaysWorked:    it.DaysWorked,
			RegularHours:  it.RegularHours,
			OvertimeHours: it.OvertimeHours,
			DailyPay:      it.DailyPay,
			OvertimePay:   it.OvertimePay,
			TotalPay:      it.TotalPay,
			BankName:      it.BankName,
			AccountNumber: it.AccountNumber,
		}
	}
	s := payroll.Summarize(items)
	resp.Totals = PayrollTotalsDTO{
		Workers:       s.Workers,
		DaysWorked:    s.DaysWorked,
		RegularHours:  s.RegularHours,
		OvertimeHours: s.OvertimeHours,
		DailyPay:      s.DailyPay,
		OvertimePay:   s.OvertimePay,
		TotalPay:      s.TotalPay,
	}
	return resp
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	RequestID string         `json:"requestId,omitempty"`
	WorkerIDs []string       `json:"workerIds,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

func toAuditEntryDTO(e labor.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:        e.ID,
		ActorID:   string(e.ActorID),
		Action:    string(e.Action),
		RequestID: string(e.RequestID),
		Detail:    e.Detail,
		At:        e.At,
	}
	for _, w := range e.WorkerIDs {
		dto.WorkerIDs = append(dto.WorkerIDs, string(w))
	}
	return dto
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
