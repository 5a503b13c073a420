package materialize

import (
	"database/sql"
	"fmt"
)

// Scan reads every remaining row of rows into a flat Entity keyed by column
// name. Byte slices returned by the driver are converted to strings. rows is
// closed before Scan returns.
func Scan(rows *sql.Rows) ([]Entity, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []Entity
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Entity, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Rows scans and materializes a whole result set.
func Rows(rows *sql.Rows) ([]Entity, error) {
	flat, err := Scan(rows)
	if err != nil {
		return nil, err
	}
	return All(flat)
}
