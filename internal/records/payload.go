package records

import (
	"math"
	"strings"
	"time"
)

// Payload is the entity-specific part of a record.
type Payload interface {
	Validate() error
}

// DateLayout is the calendar date format used by transactions.
const DateLayout = "2006-01-02"

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

type Transaction struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
}

func (t Transaction) Validate() error {
	if t.Type != TransactionIncome && t.Type != TransactionExpense {
		return fieldError("type", "must be income or expense")
	}
	if err := validateAmount("amount", t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return fieldError("category", "is required")
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fieldError("date", "must be YYYY-MM-DD")
	}
	return nil
}

type Product struct {
	Name  string  `json:"name"`
	Stock int64   `json:"stock"`
	Price float64 `json:"price"`
	Unit  string  `json:"unit"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fieldError("name", "is required")
	}
	if p.Stock < 0 {
		return fieldError("stock", "must not be negative")
	}
	if err := validateAmount("price", p.Price); err != nil {
		return err
	}
	if strings.TrimSpace(p.Unit) == "" {
		return fieldError("unit", "is required")
	}
	return nil
}

type Service struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Unit  string  `json:"unit"`
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fieldError("name", "is required")
	}
	if err := validateAmount("price", s.Price); err != nil {
		return err
	}
	if strings.TrimSpace(s.Unit) == "" {
		return fieldError("unit", "is required")
	}
	return nil
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fieldError(field, "must be a finite number")
	}
	if v < 0 {
		return fieldError(field, "must not be negative")
	}
	return nil
}
