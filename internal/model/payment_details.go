package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PaymentDetails is the method-specific payload of a ledger entry. The set of
// implementations is closed: each one belongs to exactly one PaymentMethod.
type PaymentDetails interface {
	PaymentMethod() PaymentMethod
	validate() error
}

// CardDetails covers debit and credit card payments.
type CardDetails struct {
	Brand             string `json:"brand"`
	Installments      int    `json:"installments"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// PixDetails covers instant transfers.
type PixDetails struct {
	TransactionID string `json:"transaction_id"`
}

// CheckDetails covers paper checks.
type CheckDetails struct {
	Bank    string    `json:"bank"`
	Number  string    `json:"number"`
	DueDate time.Time `json:"due_date"`
}

// BankSlipDetails covers boleto-style bank slips.
type BankSlipDetails struct {
	Barcode string    `json:"barcode"`
	DueDate time.Time `json:"due_date"`
}

// PromissoryNoteDetails covers store credit settled later in installments.
type PromissoryNoteDetails struct {
	Installments int       `json:"installments"`
	DueDate      time.Time `json:"due_date"`
}

// GatewayStatus is the status value reported by an external checkout.
type GatewayStatus string

const (
	GatewayApproved GatewayStatus = "approved"
	GatewayPending  GatewayStatus = "pending"
	GatewayRejected GatewayStatus = "rejected"
)

// GatewayDetails covers payments settled by a third-party gateway.
type GatewayDetails struct {
	Provider   string        `json:"provider"`
	ExternalID string        `json:"external_id"`
	Status     GatewayStatus `json:"status"`
}

func (CardDetails) PaymentMethod() PaymentMethod           { return MethodCard }
func (PixDetails) PaymentMethod() PaymentMethod            { return MethodPix }
func (CheckDetails) PaymentMethod() PaymentMethod          { return MethodCheck }
func (BankSlipDetails) PaymentMethod() PaymentMethod       { return MethodBankSlip }
func (PromissoryNoteDetails) PaymentMethod() PaymentMethod { return MethodPromissoryNote }
func (GatewayDetails) PaymentMethod() PaymentMethod        { return MethodGateway }

func (d CardDetails) validate() error {
	if strings.TrimSpace(d.Brand) == "" {
		return errors.New("card brand is required")
	}
	if d.Installments < 1 {
		return errors.New("card installments must be at least 1")
	}
	return nil
}

func (d PixDetails) validate() error {
	if strings.TrimSpace(d.TransactionID) == "" {
		return errors.New("pix transaction_id is required")
	}
	return nil
}

func (d CheckDetails) validate() error {
	if strings.TrimSpace(d.Bank) == "" || strings.TrimSpace(d.Number) == "" {
		return errors.New("check bank and number are required")
	}
	return nil
}

func (d BankSlipDetails) validate() error {
	if strings.TrimSpace(d.Barcode) == "" {
		return errors.New("bank_slip barcode is required")
	}
	return nil
}

func (d PromissoryNoteDetails) validate() error {
	if d.Installments < 1 {
		return errors.New("promissory_note installments must be at least 1")
	}
	if d.DueDate.IsZero() {
		return errors.New("promissory_note due_date is required")
	}
	return nil
}

func (d GatewayDetails) validate() error {
	if strings.TrimSpace(d.Provider) == "" || strings.TrimSpace(d.ExternalID) == "" {
		return errors.New("gateway provider and external_id are required")
	}
	if d.Status != GatewayApproved {
		return fmt.Errorf("gateway payment status %q cannot be recorded", d.Status)
	}
	return nil
}

// detailsRequired lists the methods whose payload is mandatory.
var detailsRequired = map[PaymentMethod]bool{
	MethodPix:            true,
	MethodCheck:          true,
	MethodBankSlip:       true,
	MethodPromissoryNote: true,
	MethodGateway:        true,
}

// DecodePaymentDetails parses the raw JSON payload for method. Cash never has
// a payload; card payloads are optional.
func DecodePaymentDetails(method PaymentMethod, raw json.RawMessage) (PaymentDetails, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if detailsRequired[method] {
			return nil, fmt.Errorf("details are required for method %s", method)
		}
		return nil, nil
	}

	var d PaymentDetails
	switch method {
	case MethodCash:
		return nil, errors.New("cash payments do not take details")
	case MethodCard:
		d = &CardDetails{}
	case MethodPix:
		d = &PixDetails{}
	case MethodCheck:
		d = &CheckDetails{}
	case MethodBankSlip:
		d = &BankSlipDetails{}
	case MethodPromissoryNote:
		d = &PromissoryNoteDetails{}
	case MethodGateway:
		d = &GatewayDetails{}
	default:
		return nil, fmt.Errorf("unknown payment method %q", method)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, fmt.Errorf("invalid %s details: %w", method, err)
	}
	d = deref(d)
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func deref(d PaymentDetails) PaymentDetails {
	switch v := d.(type) {
	case *CardDetails:
		return *v
	case *PixDetails:
		return *v
	case *CheckDetails:
		return *v
	case *BankSlipDetails:
		return *v
	case *PromissoryNoteDetails:
		return *v
	case *GatewayDetails:
		return *v
	}
	return d
}

// DetailsColumn persists PaymentDetails as a self-describing JSON envelope.
type DetailsColumn struct {
	Details PaymentDetails
}

type detailsEnvelope struct {
	Method PaymentMethod   `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// Value implements driver.Valuer.
func (c DetailsColumn) Value() (driver.Value, error) {
	if c.Details == nil {
		return nil, nil
	}
	data, err := json.Marshal(c.Details)
	if err != nil {
		return nil, err
	}
	env, err := json.Marshal(detailsEnvelope{Method: c.Details.PaymentMethod(), Data: data})
	if err != nil {
		return nil, err
	}
	return string(env), nil
}

// Scan implements sql.Scanner.
func (c *DetailsColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.Details = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported details column type %T", src)
	}
	if len(raw) == 0 {
		c.Details = nil
		return nil
	}
	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	d, err := decodeStored(env)
	if err != nil {
		return err
	}
	c.Details = d
	return nil
}

// decodeStored skips business validation so historical rows always load.
func decodeStored(env detailsEnvelope) (PaymentDetails, error) {
	var d PaymentDetails
	switch env.Method {
	case MethodCard:
		d = &CardDetails{}
	case MethodPix:
		d = &PixDetails{}
	case MethodCheck:
		d = &CheckDetails{}
	case MethodBankSlip:
		d = &BankSlipDetails{}
	case MethodPromissoryNote:
		d = &PromissoryNoteDetails{}
	case MethodGateway:
		d = &GatewayDetails{}
	default:
		return nil, fmt.Errorf("unknown stored details method %q", env.Method)
	}
	if err := json.Unmarshal(env.Data, d); err != nil {
		return nil, err
	}
	return deref(d), nil
}
