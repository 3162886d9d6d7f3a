package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/application/port"
)

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeIDs(ids []int64) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode ids: %w", err)
	}
	return string(b), nil
}

func decodeIDs(s string) ([]int64, error) {
	ids := []int64{}
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode ids: %w", err)
	}
	return ids, nil
}

func encodeDistribution(d map[string]decimal.Decimal) (sql.NullString, error) {
	if len(d) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode analytic distribution: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeDistribution(s sql.NullString) (map[string]decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var d map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(s.String), &d); err != nil {
		return nil, fmt.Errorf("failed to decode analytic distribution: %w", err)
	}
	return d, nil
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	values := []string{}
	if s == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return values, nil
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// conflictOr maps unique constraint violations to port.ErrConflict
func conflictOr(err error, msg string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", msg, port.ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
