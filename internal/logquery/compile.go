package logquery

import (
	"fmt"
	"strings"
)

// Columns selected by every compiled query, in scan order.
const selectColumns = "e.base_address, e.revision, e.command, e.event"

// Compile validates q and converts it to a parameterized SQLite
// statement over sync_log_entries. Rows come back ordered by base address
// then revision.
func Compile(q Query) (string, []any, error) {
	if err := Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	var where []string
	var params []any
	if !q.Base.IsZero() {
		where = append(where, "e.base_address = ?")
		params = append(params, q.Base.String())
	}
	if q.Filter != nil {
		cond, args := compileFilter(q.Filter)
		if cond != "" {
			where = append(where, cond)
			params = append(params, args...)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + selectColumns)
	sb.WriteString(" FROM sync_log_entries e")
	sb.WriteString(" JOIN sync_logs l ON l.base_address = e.base_address")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY e.base_address COLLATE BINARY ASC, e.revision ASC")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

// compileFilter returns the condition for f, or "" if f keeps every row.
// f must have passed Validate.
func compileFilter(f Filter) (string, []any) {
	switch f := f.(type) {
	case KindIs:
		name, _ := kindName(f.Kind)
		return "json_extract(e.event, '$.kind') = ?", []any{name}
	case Under:
		addr := f.Address.String()
		return "(json_extract(e.event, '$.changed') = ? OR substr(json_extract(e.event, '$.changed'), 1, ?) = ?)",
			[]any{addr, len(addr) + 1, addr + "/"}
	case Origin:
		if f.Local {
			return "e.command IS NOT NULL", nil
		}
		return "e.command IS NULL", nil
	case Revisions:
		var parts []string
		var args []any
		if f.From > 0 {
			parts = append(parts, "e.revision >= ?")
			args = append(args, f.From)
		}
		if f.To > 0 {
			parts = append(parts, "e.revision <= ?")
			args = append(args, f.To)
		}
		return strings.Join(parts, " AND "), args
	case Unconfirmed:
		return "e.revision > l.synchronized_revision", nil
	case And:
		var parts []string
		var args []any
		for _, sub := range f.Filters {
			cond, subArgs := compileFilter(sub)
			if cond == "" {
				continue
			}
			parts = append(parts, cond)
			args = append(args, subArgs...)
		}
		if len(parts) == 0 {
			return "", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", args
	}
	return "", nil
}
