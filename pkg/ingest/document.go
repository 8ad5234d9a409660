// Package ingest turns government letters into vector store records: a model
// analyses the raw text into a GovernmentDocument, which is then flattened
// into canonical contents plus filterable metadata.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/ArturGR3/AI-Hackathon/pkg/ai"
	"github.com/ArturGR3/AI-Hackathon/pkg/query"
)

// ActionType is what a letter asks the recipient to do.
type ActionType string

const (
	ActionNone            ActionType = "no_action"
	ActionAppointment     ActionType = "appointment"
	ActionReplyRequired   ActionType = "reply_required"
	ActionPaymentRequired ActionType = "payment_required"
)

var actionTypes = []ActionType{ActionNone, ActionAppointment, ActionReplyRequired, ActionPaymentRequired}

func (ActionType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(actionTypes))
	for i, a := range actionTypes {
		enum[i] = string(a)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Appointment is an in-person appointment the recipient must attend.
type Appointment struct {
	Date              time.Time `json:"date" jsonschema:"description=The date and time of the appointment in RFC 3339"`
	Location          string    `json:"location" jsonschema:"description=The location of the appointment"`
	RequiredDocuments []string  `json:"required_documents" jsonschema:"description=List of documents to bring to the appointment"`
	AdditionalNotes   *string   `json:"additional_notes" jsonschema:"description=Any additional notes about the appointment"`
}

func (Appointment) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "required_documents", "additional_notes")
}

// ReplyRequired lists what must be sent back and where.
type ReplyRequired struct {
	DocumentsToSendInOriginalLanguage []string  `json:"documents_to_send_in_original_language" jsonschema:"description=List of documents that need to be sent back in the original language"`
	DocumentsToSendInEnglish          []string  `json:"documents_to_send_in_english" jsonschema:"description=List of documents that need to be sent back in English"`
	Deadline                          time.Time `json:"deadline" jsonschema:"description=Deadline for sending the documents in RFC 3339"`
	AddressToSendTo                   string    `json:"address_to_send_to" jsonschema:"description=Address to send the documents to"`
}

// BankDetails identifies the account a payment goes to.
type BankDetails struct {
	AccountHolder *string `json:"account_holder" jsonschema:"description=Name of the account holder"`
	IBAN          *string `json:"iban" jsonschema:"description=IBAN of the account"`
	BIC           *string `json:"bic" jsonschema:"description=BIC or SWIFT code"`
	BankName      *string `json:"bank_name" jsonschema:"description=Name of the bank"`
}

func (BankDetails) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "account_holder", "iban", "bic", "bank_name")
}

// PaymentDetails is a payment the recipient owes.
type PaymentDetails struct {
	Recipient       string      `json:"recipient" jsonschema:"description=Who to pay"`
	Amount          float64     `json:"amount" jsonschema:"description=Amount to pay"`
	Deadline        time.Time   `json:"deadline" jsonschema:"description=Payment deadline in RFC 3339"`
	BankDetails     BankDetails `json:"bank_details" jsonschema:"description=Bank details for payment"`
	ReferenceNumber *string     `json:"reference_number" jsonschema:"description=Payment reference number if any"`
}

func (PaymentDetails) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "reference_number")
}

// RequiredAction is one action with the details matching its type.
type RequiredAction struct {
	ActionType  ActionType      `json:"action_type"`
	Appointment *Appointment    `json:"appointment"`
	Reply       *ReplyRequired  `json:"reply"`
	Payment     *PaymentDetails `json:"payment"`
}

func (RequiredAction) JSONSchemaExtend(s *jsonschema.Schema) {
	ai.Nullable(s, "appointment", "reply", "payment")
}

// Validate checks that the details for the action type are present.
func (a RequiredAction) Validate() error {
	switch a.ActionType {
	case ActionNone:
		return nil
	case ActionAppointment:
		if a.Appointment == nil {
			return errors.New("appointment action without appointment details")
		}
	case ActionReplyRequired:
		if a.Reply == nil {
			return errors.New("reply_required action without reply details")
		}
	case ActionPaymentRequired:
		if a.Payment == nil {
			return errors.New("payment_required action without payment details")
		}
		if a.Payment.Amount < 0 {
			return fmt.Errorf("negative payment amount %v", a.Payment.Amount)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.ActionType)
	}
	return nil
}

// GovernmentDocument is the structured analysis of one letter.
type GovernmentDocument struct {
	TitleInOriginalLanguage   string           `json:"title_in_original_language" jsonschema:"description=The title of the document in the original language"`
	TitleInEnglish            string           `json:"title_in_english" jsonschema:"description=Up to 3 words that describe the document based on the action required"`
	Sender                    query.Sender     `json:"sender" jsonschema:"description=Correctly assign the sender of the document; if none of the options fit use 'Other'"`
	SentDate                  string           `json:"sent_date" jsonschema:"description=The date the document was sent as YYYY-MM-DD"`
	AddressedTo               string           `json:"addressed_to" jsonschema:"description=The person or entity to whom the document is addressed without any titles or prefixes like Herr or Frau or Dr."`
	ContentInOriginalLanguage string           `json:"content_in_original_language" jsonschema:"description=The content of the document in the original language"`
	ContentInEnglish          string           `json:"content_in_english" jsonschema:"description=The content of the document translated to English"`
	SummaryInEnglish          string           `json:"summary_in_english" jsonschema:"description=A summary of the document content in English"`
	RequiredActions           []RequiredAction `json:"required_actions" jsonschema:"description=List of required actions for this document"`
}

// Validate checks the fields a record cannot be built without.
func (d GovernmentDocument) Validate() error {
	var errs []error
	if strings.TrimSpace(d.TitleInEnglish) == "" {
		errs = append(errs, errors.New("title_in_english is empty"))
	}
	if !d.Sender.Valid() {
		errs = append(errs, fmt.Errorf("unknown sender %q", d.Sender))
	}
	if _, err := time.Parse(time.DateOnly, d.SentDate); err != nil {
		errs = append(errs, fmt.Errorf("sent_date %q is not YYYY-MM-DD", d.SentDate))
	}
	if strings.TrimSpace(d.AddressedTo) == "" {
		errs = append(errs, errors.New("addressed_to is empty"))
	}
	if strings.TrimSpace(d.ContentInEnglish) == "" {
		errs = append(errs, errors.New("content_in_english is empty"))
	}
	for i, a := range d.RequiredActions {
		if err := a.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("required_actions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
