// Package payment drives the public payment page a student reaches through an emailed link:
// reading what is due and declaring how it was paid.
package payment

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/portal/core"
)

type Method string

const (
	MethodTransfer Method = "virement"
	MethodCash     Method = "especes"
	MethodCheque   Method = "cheque"
	MethodCard     Method = "carte"
)

var Methods = []Method{MethodTransfer, MethodCash, MethodCheque, MethodCard}

func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

var (
	ErrUnknownMethod = errors.New("unknown payment method")
	ErrAlreadyPaid   = errors.New("payment already confirmed")
	ErrInvalidToken  = errors.New("invalid payment link")
)

// ParseMethod reads a payment method, accepting accented spellings ("espèces", "chèque").
func ParseMethod(s string) (Method, error) {
	m := Method(core.FoldKey(s))
	if !m.Valid() {
		return "", ErrUnknownMethod
	}
	return m, nil
}

// Payment statuses
const (
	StatusUnpaid  = "impaye"
	StatusPartial = "partiel"
	StatusPaid    = "paye"
	StatusLate    = "en_retard"
)

// Info is what the payment page shows for a link token.
type Info struct {
	ID          int          `json:"id"`
	StudentName string       `json:"eleve_nom"`
	MerkezName  string       `json:"merkez_nom"`
	MerkezPhone null.String  `json:"merkez_telephone"`
	Month       int          `json:"mois"`
	Year        int          `json:"annee"`
	AmountDue   float64      `json:"montant_du"`
	AmountPaid  float64      `json:"montant_paye"`
	AmountLeft  null.Float64 `json:"montant_restant"`
	DueDate     null.String  `json:"date_echeance"`
	PaidOn      null.String  `json:"date_paiement"`
	Status      string       `json:"statut"`
	Method      null.String  `json:"methode_paiement"`
}

func (i Info) Paid() bool {
	return i.Status == StatusPaid
}

// Remaining is the amount still due. The upstream figure is used when present.
func (i Info) Remaining() float64 {
	if i.AmountLeft.Valid {
		return i.AmountLeft.Float64
	}
	return math.Max(0, i.AmountDue-i.AmountPaid)
}

var months = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Period names the billed month, e.g. "octobre 2026".
func (i Info) Period() string {
	if i.Month < 1 || i.Month > 12 {
		return fmt.Sprint(i.Year)
	}
	return fmt.Sprintf("%s %d", months[i.Month-1], i.Year)
}

// ConfirmRequest is the body of a payment confirmation.
type ConfirmRequest struct {
	Method string `json:"methode_paiement" validate:"required"`
}

// Validate checks the request and returns the parsed method.
func (req *ConfirmRequest) Validate(validate *validator.Validate) (Method, error) {
	req.Method = core.CleanString(req.Method)
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	m, err := ParseMethod(req.Method)
	if err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "methode_paiement", Error: err.Error()})
	}
	return m, nil
}
