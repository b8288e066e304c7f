package model

import (
	"fmt"
	"time"
)

// Status discriminates active stock from stock that already received a
// final disposition.
type Status string

const (
	StatusActive  Status = "active"
	StatusTreated Status = "treated"
)

// TreatmentType records how treated stock left the inventory.
type TreatmentType string

const (
	TreatmentSold      TreatmentType = "sold"
	TreatmentExchanged TreatmentType = "exchanged"
	TreatmentReturned  TreatmentType = "returned"
	TreatmentExpired   TreatmentType = "expired"
)

// ValidTreatmentType reports whether t is one of the known disposition types.
func ValidTreatmentType(t TreatmentType) bool {
	switch t {
	case TreatmentSold, TreatmentExchanged, TreatmentReturned, TreatmentExpired:
		return true
	}
	return false
}

// Product is a batch of perishable stock. Field names follow the stored
// collection format: descricao is the display name, codprod the internal
// product code, codauxiliar the EAN barcode and lote the batch number.
type Product struct {
	ID            string        `json:"id"`
	Descricao     string        `json:"descricao"`
	CodProd       string        `json:"codprod"`
	CodAuxiliar   string        `json:"codauxiliar"`
	Lote          string        `json:"lote"`
	Quantidade    int           `json:"quantidade"`
	Validade      time.Time     `json:"validade"`
	DiasRestantes int           `json:"diasrestantes"`
	Status        Status        `json:"status"`
	TreatmentType TreatmentType `json:"treatmentType,omitempty"`
	TreatmentDate *time.Time    `json:"treatmentDate,omitempty"`
}

// DaysRemaining returns the signed number of whole calendar days between
// now and the expiration date. Negative once the product is past its
// validade. It is always derived, never read back from storage, since the
// stored value goes stale the day after it was written.
func (p Product) DaysRemaining(now time.Time) int {
	today := truncateToDay(now)
	expiry := truncateToDay(p.Validade)
	return int(expiry.Sub(today).Hours() / 24)
}

// IsActive reports whether the product still counts as open stock.
func (p Product) IsActive() bool {
	return p.Status == StatusActive
}

// Normalize applies the status invariant in place: an active product
// carries no treatment fields, a treated product carries both. It also
// defaults a missing status to active.
func (p *Product) Normalize() {
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.Status == StatusActive {
		p.TreatmentType = ""
		p.TreatmentDate = nil
	}
}

// Validate checks the required fields of a record before it enters the
// collection.
func (p Product) Validate() error {
	if p.Descricao == "" {
		return fmt.Errorf("descricao is required")
	}
	if p.CodProd == "" {
		return fmt.Errorf("codprod is required")
	}
	if p.CodAuxiliar == "" {
		return fmt.Errorf("codauxiliar is required")
	}
	if p.Lote == "" {
		return fmt.Errorf("lote is required")
	}
	if p.Quantidade < 0 {
		return fmt.Errorf("quantidade must not be negative")
	}
	if p.Validade.IsZero() {
		return fmt.Errorf("validade is required")
	}
	if p.Status == StatusTreated {
		if !ValidTreatmentType(p.TreatmentType) {
			return fmt.Errorf("treated product requires a valid treatmentType")
		}
		if p.TreatmentDate == nil {
			return fmt.Errorf("treated product requires a treatmentDate")
		}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
