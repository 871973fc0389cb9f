package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
	// Never disables automatic closures.
	Never RepetitionTypes = "none"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// BaseCurrency is the currency every stored amount is expressed in.
const BaseCurrency = "USD"

const maxDescriptionLen = 200

type (
	RepetitionTypes string

	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is an immutable income or expense entry.
	Transaction struct {
		ID          string
		UserID      string
		Type        TransactionType
		Amount      Money
		Description string
		OccurredAt  time.Time
		CreatedAt   time.Time
	}

	// SavingsContribution counts toward all-time savings and never toward a period.
	SavingsContribution struct {
		ID        string
		UserID    string
		Amount    Money
		Note      string
		CreatedAt time.Time
	}

	UserPreferences struct {
		UserID        string
		MonthlyIncome Money
		AutoClose     RepetitionTypes
		// AutoCloseAnchor is the reference date for scheduled closures: the
		// day of month (or month and day) a period is expected to end.
		AutoCloseAnchor Date
		UpdatedAt       time.Time
	}

	// MonthClosure is an append-only snapshot of a closed period.
	MonthClosure struct {
		ID                 int64
		UserID             string
		MonthYear          string
		ClosureDate        time.Time
		TotalIncome        Money
		TotalExpenses      Money
		NetBalance         Money
		TotalSavings       Money
		AccumulatedBalance Money
		CurrencyCode       string
		Notes              string
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyUser          = errors.New("empty user id")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidFrequency   = errors.New("invalid auto-close frequency")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (r RepetitionTypes) Valid() bool {
	switch r {
	case Never, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (s SavingsContribution) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if len(s.Note) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return s.Amount.Validate()
}
