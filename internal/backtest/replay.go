// Package backtest replays the decision engine over historical indicator rows.
package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/strategy"
)

const (
	colDate        = "date"
	colTBillSpread = "tbill_spread"
	colTreasuryVol = "treasury_vol"
	colFear        = "fear"
)

// Row is one dated cycle of raw inputs. Absent keys are missing data.
type Row struct {
	Date        time.Time
	Indicators  map[string]any
	DebtCeiling debtceiling.Inputs
}

// ParseCSV reads rows with the header date,<indicator...>,tbill_spread,treasury_vol,fear.
// The debt-ceiling columns are optional; empty cells are missing data. Dates must not go backwards.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty replay file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	if len(header) < 2 || header[0] != colDate {
		return nil, fmt.Errorf("header must start with %q and name at least one column", colDate)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[0])
		}
		if n := len(rows); n > 0 && date.Before(rows[n-1].Date) {
			return nil, fmt.Errorf("line %d: %s is before %s", line, rec[0], rows[n-1].Date.Format("2006-01-02"))
		}

		row := Row{Date: date, Indicators: make(map[string]any, len(header)-1)}
		for i := 1; i < len(header); i++ {
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %q is not a number", line, header[i], cell)
			}
			switch header[i] {
			case colTBillSpread:
				row.DebtCeiling.TBillSpreadBP = v
			case colTreasuryVol:
				row.DebtCeiling.TreasuryVol = v
			case colFear:
				row.DebtCeiling.Fear = v
			default:
				row.Indicators[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Entry is one actionable signal found during a replay.
type Entry struct {
	Date       time.Time        `json:"date"`
	Action     model.Action     `json:"action"`
	Score      float64          `json:"score"`
	AlertState model.AlertState `json:"alert_state"`
	Reasons    []string         `json:"reasons"`
}

// Report summarizes a replay.
type Report struct {
	Cycles       int                  `json:"cycles"`
	Counts       map[model.Action]int `json:"counts"`
	Signals      []Entry              `json:"signals"`
	MaxScore     float64              `json:"max_score"`
	MaxScoreDate time.Time            `json:"max_score_date"`
	DaysSold     int                  `json:"days_sold"`
	Final        model.PositionState  `json:"final"`
}

// Run evaluates every row in order, threading the position state from start.
// A malformed row stops the replay; the error names its date.
func Run(rows []Row, eng *strategy.Engine, start model.PositionState) (*Report, error) {
	rep := &Report{Counts: make(map[model.Action]int), Final: start}
	st := start
	for _, row := range rows {
		sig, next, err := eng.Evaluate(strategy.Input{Indicators: row.Indicators, DebtCeiling: row.DebtCeiling}, st, row.Date)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", row.Date.Format("2006-01-02"), err)
		}
		rep.Cycles++
		rep.Counts[sig.Action]++
		if rep.Cycles == 1 || sig.Score > rep.MaxScore {
			rep.MaxScore = sig.Score
			rep.MaxScoreDate = row.Date
		}
		if next.Position == model.PositionSold {
			rep.DaysSold++
		}
		if sig.Action.Actionable() {
			rep.Signals = append(rep.Signals, Entry{
				Date:       row.Date,
				Action:     sig.Action,
				Score:      sig.Score,
				AlertState: sig.AlertState,
				Reasons:    sig.Reasons,
			})
		}
		st = next
	}
	rep.Final = st
	return rep, nil
}
