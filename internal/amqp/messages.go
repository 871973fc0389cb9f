package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"saldo/internal/core"
)

// EventClosureCreated is the routing key and event type of closure events.
const EventClosureCreated = "closure.created"

// ClosureEvent carries a full closure snapshot so consumers never need to
// read the ledger. Amounts are in cents of the base currency.
type ClosureEvent struct {
	Type             string    `json:"type"`
	ClosureID        int64     `json:"closure_id"`
	UserID           string    `json:"user_id"`
	MonthYear        string    `json:"month_year"`
	ClosureDate      time.Time `json:"closure_date"`
	TotalIncome      int64     `json:"total_income_cents"`
	TotalExpenses    int64     `json:"total_expenses_cents"`
	NetBalance       int64     `json:"net_balance_cents"`
	AccumulatedTotal int64     `json:"accumulated_balance_cents"`
	CurrencyCode     string    `json:"currency_code"`
	Notes            string    `json:"notes"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewClosureEvent(c core.MonthClosure) *ClosureEvent {
	return &ClosureEvent{
		Type:             EventClosureCreated,
		ClosureID:        c.ID,
		UserID:           c.UserID,
		MonthYear:        c.MonthYear,
		ClosureDate:      c.ClosureDate,
		TotalIncome:      c.TotalIncome.Cents,
		TotalExpenses:    c.TotalExpenses.Cents,
		NetBalance:       c.NetBalance.Cents,
		AccumulatedTotal: c.AccumulatedBalance.Cents,
		CurrencyCode:     c.CurrencyCode,
		Notes:            c.Notes,
		Timestamp:        time.Now().UTC(),
	}
}

// Closure rebuilds the snapshot carried by the event.
func (m *ClosureEvent) Closure() core.MonthClosure {
	return core.MonthClosure{
		ID:                 m.ClosureID,
		UserID:             m.UserID,
		MonthYear:          m.MonthYear,
		ClosureDate:        m.ClosureDate,
		TotalIncome:        core.Money{Cents: m.TotalIncome},
		TotalExpenses:      core.Money{Cents: m.TotalExpenses},
		NetBalance:         core.Money{Cents: m.NetBalance},
		AccumulatedBalance: core.Money{Cents: m.AccumulatedTotal},
		CurrencyCode:       m.CurrencyCode,
		Notes:              m.Notes,
	}
}

func (m *ClosureEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClosureEventFromJSON decodes and sanity checks an event body.
func ClosureEventFromJSON(data []byte) (*ClosureEvent, error) {
	var msg ClosureEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != EventClosureCreated {
		return nil, fmt.Errorf("unexpected event type %q", msg.Type)
	}
	if msg.ClosureID <= 0 || msg.UserID == "" {
		return nil, fmt.Errorf("closure event missing id or user")
	}
	return &msg, nil
}
