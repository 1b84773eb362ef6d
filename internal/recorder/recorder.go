package recorder

import (
	"time"

	"CrashSentinel/internal/model"
)

// CycleRecord holds everything one evaluation cycle produced.
// Signal is nil when the cycle aborted; Error then carries the reason.
type CycleRecord struct {
	ID       string
	Time     time.Time
	Signal   *model.Signal
	Position model.PositionState
	Failed   []string // symbols the collector could not fetch
	Error    string
}

// AlertEvent records one outbound notification.
type AlertEvent struct {
	Kind      string // "SIGNAL", "INTRADAY", "DASHBOARD", "OPTIONS"
	Level     string
	Score     float64
	Delivered bool
	Note      string
}

// CycleRow is one row of the cycles table.
type CycleRow struct {
	ID            string   `db:"id" json:"id"`
	Timestamp     int64    `db:"timestamp" json:"timestamp"`
	Action        string   `db:"action" json:"action"`
	Score         float64  `db:"score" json:"score"`
	Base          float64  `db:"base_score" json:"base_score"`
	Boost         float64  `db:"boost" json:"boost"`
	AlertState    string   `db:"alert_state" json:"alert_state"`
	DaysRemaining *int64   `db:"days_remaining" json:"days_remaining,omitempty"`
	BudgetRisk    *float64 `db:"budget_risk" json:"budget_risk,omitempty"`
	Position      string   `db:"position" json:"position"`
	SellOrigin    string   `db:"sell_origin" json:"sell_origin,omitempty"`
	Defaulted     string   `db:"defaulted" json:"defaulted,omitempty"`
	Failed        string   `db:"failed_symbols" json:"failed_symbols,omitempty"`
	Reasons       string   `db:"reasons" json:"reasons"`
	Error         string   `db:"error" json:"error,omitempty"`
}

// Time returns the row timestamp in UTC.
func (r CycleRow) Time() time.Time { return time.Unix(r.Timestamp, 0).UTC() }

// ContributionRow is one per-indicator line of a cycle's composite breakdown.
type ContributionRow struct {
	CycleID   string  `db:"cycle_id" json:"cycle_id"`
	Name      string  `db:"name" json:"name"`
	Score     float64 `db:"score" json:"score"`
	Weight    float64 `db:"weight" json:"weight"`
	Weighted  float64 `db:"weighted" json:"weighted"`
	Defaulted bool    `db:"defaulted" json:"defaulted"`
}

// Recorder is the append-only audit log of evaluation cycles.
type Recorder interface {
	RecordCycle(rec *CycleRecord) error
	RecordAlert(evt *AlertEvent) error
	Recent(n int) ([]CycleRow, error)
	Contributions(cycleID string) ([]ContributionRow, error)
	Close() error
}
