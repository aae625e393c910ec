package labor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYLOAD - Closed set of request bodies, tagged by RequestType
// =============================================================================

// Payload is implemented only by the three payload structs in this file.
// Decoding happens once, at the boundary, via DecodePayload.
type Payload interface {
	Type() RequestType
	Validate() error
	sealed()
}

// NewWorkerPayload asks for a worker to be created on approval.
type NewWorkerPayload struct {
	Name          string `json:"name"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	// RegistrationDate defaults to the approval day when absent.
	RegistrationDate *Date `json:"regdate,omitempty"`
}

func (NewWorkerPayload) Type() RequestType { return RequestNewWorker }
func (NewWorkerPayload) sealed()           {}

func (p NewWorkerPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPayload)
	}
	return nil
}

// OvertimeIndividualPayload adjusts one worker's overtime counter.
type OvertimeIndividualPayload struct {
	WorkerID WorkerID        `json:"workerId"`
	Hours    decimal.Decimal `json:"hours"`
	Deduct   bool            `json:"deduct"`
}

func (OvertimeIndividualPayload) Type() RequestType { return RequestOvertimeIndividual }
func (OvertimeIndividualPayload) sealed()           {}

func (p OvertimeIndividualPayload) Validate() error {
	if p.WorkerID == "" {
		return fmt.Errorf("%w: workerId is required", ErrInvalidPayload)
	}
	return validateHours(p.Hours)
}

// OvertimeGroupPayload adjusts every active worker of the company.
type OvertimeGroupPayload struct {
	Hours  decimal.Decimal `json:"hours"`
	Deduct bool            `json:"deduct"`
}

func (OvertimeGroupPayload) Type() RequestType { return RequestOvertimeGroup }
func (OvertimeGroupPayload) sealed()           {}

func (p OvertimeGroupPayload) Validate() error {
	return validateHours(p.Hours)
}

func validateHours(h decimal.Decimal) error {
	if !h.IsPositive() {
		return fmt.Errorf("%w: hours must be positive", ErrInvalidPayload)
	}
	return nil
}

// =============================================================================
// ENCODING
// =============================================================================

// DecodePayload parses raw JSON into the variant named by t and validates it.
func DecodePayload(t RequestType, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case RequestNewWorker:
		var v NewWorkerPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case RequestOvertimeIndividual:
		var v OvertimeIndividualPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case RequestOvertimeGroup:
		var v OvertimeGroupPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequestType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Type(), err)
	}
	return data, nil
}
