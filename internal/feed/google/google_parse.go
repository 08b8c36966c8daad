package google

import (
	"fmt"
	"strings"

	"budgetboard/internal/core"
)

var columns = []string{"id", "date", "type", "category", "amount", "owner", "description"}

// parseRows converts a values matrix (as returned by the Sheets API) into
// transactions. The first row is the header. Amount cells are kept verbatim so
// malformed values surface during aggregation.
func parseRows(values [][]interface{}) ([]core.Transaction, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	idx := make(map[string]int, len(columns))
	for _, col := range columns {
		idx[col] = indexOf(headers, col)
	}
	if idx["amount"] == -1 || idx["type"] == -1 {
		return nil, fmt.Errorf("unexpected transactions header: need Amount and Type; got headers=%v", headers)
	}

	out := make([]core.Transaction, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		t := core.Transaction{
			ID:          safeGet(row, idx["id"]),
			Amount:      core.RawAmount(safeGet(row, idx["amount"])),
			Type:        core.ParseTransactionType(safeGet(row, idx["type"])),
			Category:    safeGet(row, idx["category"]),
			Owner:       safeGet(row, idx["owner"]),
			Description: safeGet(row, idx["description"]),
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("row%d", i+1)
		}
		if d, err := core.ParseDate(safeGet(row, idx["date"])); err == nil {
			t.Date = d
		}
		out = append(out, t)
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
