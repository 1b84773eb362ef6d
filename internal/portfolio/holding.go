package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Holding is one position to monitor.
type Holding struct {
	Symbol    string  `yaml:"symbol" json:"symbol" validate:"required"`
	Shares    float64 `yaml:"shares" json:"shares" validate:"gt=0"`
	CostBasis float64 `yaml:"cost_basis" json:"cost_basis" validate:"gte=0"`
}

// ParseHoldingsCSV reads a broker export with Symbol, Shares and Avg Cost/Share columns.
// Header names are matched case-insensitively; cost_basis is accepted for the cost column.
func ParseHoldingsCSV(r io.Reader) ([]Holding, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("holdings: empty file")
		}
		return nil, fmt.Errorf("holdings: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol":
			col["symbol"] = i
		case "shares":
			col["shares"] = i
		case "avg cost/share", "cost_basis":
			col["cost"] = i
		}
	}
	for _, k := range []string{"symbol", "shares", "cost"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("holdings: missing %s column", k)
		}
	}

	var out []Holding
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("holdings: %w", err)
		}
		h := Holding{Symbol: strings.ToUpper(strings.TrimSpace(rec[col["symbol"]]))}
		if h.Symbol == "" {
			continue
		}
		if h.Shares, err = parseAmount(rec[col["shares"]]); err != nil {
			return nil, fmt.Errorf("holdings line %d: shares: %w", line, err)
		}
		if h.CostBasis, err = parseAmount(rec[col["cost"]]); err != nil {
			return nil, fmt.Errorf("holdings line %d: cost: %w", line, err)
		}
		out = append(out, h)
	}
}

// parseAmount accepts broker formatting such as "$1,234.50".
func parseAmount(s string) (float64, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	return strconv.ParseFloat(s, 64)
}
