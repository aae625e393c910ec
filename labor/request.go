/*
request.go - Pending requests awaiting a company admin's decision

PURPOSE:
  A worker manager proposes a change (new hire, overtime adjustment); the
  change is held as a PendingRequest until a company admin approves or
  rejects it. Only approval applies the side effect.

STATE MACHINE:
  ┌─────────┐  approve (side effect ok)  ┌──────────┐
  │ pending │ ─────────────────────────▶ │ approved │
  └─────────┘                            └──────────┘
       │           reject                ┌──────────┐
       └───────────────────────────────▶ │ rejected │
                                         └──────────┘
  A failed side effect leaves the request pending.
  approved and rejected are terminal.

SEE ALSO:
  - payload.go: Request bodies
  - approval/service.go: Drives the transitions
*/
package labor

import "time"

type RequestType string

const (
	RequestNewWorker          RequestType = "new_worker"
	RequestOvertimeIndividual RequestType = "overtime_individual"
	RequestOvertimeGroup      RequestType = "overtime_group"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected
}

type PendingRequest struct {
	ID          RequestID
	CompanyID   CompanyID
	RequestedBy UserID
	Type        RequestType
	Payload     Payload
	Status      RequestStatus

	// LinkedWorkerID is set when an approved new_worker request created a worker.
	LinkedWorkerID *WorkerID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestFilter narrows ListRequests. Zero-valued fields match everything
// except CompanyID, which is always applied.
type RequestFilter struct {
	CompanyID   CompanyID
	RequestedBy UserID
	Status      RequestStatus
}

func (f RequestFilter) Matches(r PendingRequest) bool {
	if r.CompanyID != f.CompanyID {
		return false
	}
	if f.RequestedBy != "" && r.RequestedBy != f.RequestedBy {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
