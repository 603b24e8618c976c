package google

import (
	"fmt"
	"strings"

	"saldo/internal/core"
)

const (
	dateLayout = "2006-01-02"
	lastColumn = "H"
)

func transactionRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.CreatedAt.UTC().Format(dateLayout),
		t.AccountID,
		string(t.Kind),
		t.Description,
		t.Amount.String(),
		t.Category,
		strings.Join(t.Tags, ", "),
	}
}

func goalRow(g core.Goal) []any {
	due := ""
	if g.TargetDate != nil {
		due = g.TargetDate.UTC().Format(dateLayout)
	}
	return []any{
		g.ID,
		g.AccountID,
		g.Title,
		g.TargetAmount.String(),
		g.SavedAmount.String(),
		fmt.Sprintf("%d%%", g.Progress()),
		string(g.Status),
		due,
	}
}

func headerRow(headers []string) []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// indexRows maps the id in column A to its 1-based sheet row. The header row
// and blank cells are skipped; the first occurrence of an id wins.
func indexRows(values [][]any) map[string]int {
	rows := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, "ID")) {
			continue
		}
		if _, ok := rows[id]; !ok {
			rows[id] = i + 1
		}
	}
	return rows
}

// quoteSheet quotes a sheet title for use in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func columnRange(sheet string) string {
	return fmt.Sprintf("%s!A:%s", quoteSheet(sheet), lastColumn)
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn, row)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
