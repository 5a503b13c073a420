package sqlcompose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/materialize"
	"github.com/pthm/sqlcompose/pkg/query"
)

// Sentinel errors for the failure modes of composing and running statements.
//
// Use the Is*Err helper functions to check for specific errors.
var (
	// ErrTableRequired is returned by NewModel when no table is given.
	ErrTableRequired = clause.ErrTableRequired

	// ErrNotFound is returned by GetOne when the statement matched no rows.
	ErrNotFound = errors.New("sqlcompose: not found")

	// ErrInvalidParameters is returned when statement parameters are not a
	// map keyed by strings.
	ErrInvalidParameters = query.ErrInvalidParameters

	// ErrJSONDecode is returned when a JSON: column holds invalid JSON.
	ErrJSONDecode = materialize.ErrJSONDecode
)

// IsTableRequiredErr returns true if err is or wraps ErrTableRequired.
func IsTableRequiredErr(err error) bool {
	return errors.Is(err, ErrTableRequired)
}

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidParametersErr returns true if err is or wraps ErrInvalidParameters.
func IsInvalidParametersErr(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

// IsJSONDecodeErr returns true if err is or wraps ErrJSONDecode.
func IsJSONDecodeErr(err error) bool {
	return errors.Is(err, ErrJSONDecode)
}

// IsQueryErr returns true if err is or wraps a *QueryError.
func IsQueryErr(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// QueryError is returned when the driver fails to run a composed statement.
// It carries the statement and its parameters; Unwrap returns the driver
// error unchanged.
type QueryError struct {
	SQL    string
	Params map[string]any
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlcompose: query failed: %v\nSQL: %s\nPARAMS: %v", e.Err, e.SQL, e.Params)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// SQLState returns the SQLSTATE code of the driver error, or "" when the
// driver does not report one.
func (e *QueryError) SQLState() string {
	return sqlState(e.Err)
}

// notFound wraps ErrNotFound with the statement that matched nothing.
func notFound(sql string, params map[string]any) error {
	return fmt.Errorf("%w\nSQL: %s\nPARAMS: %v", ErrNotFound, sql, params)
}

// sqlState extracts the SQLSTATE code from a driver error.
// Works with multiple drivers via interface detection:
//   - pgx/pgconn: SQLState() string
//   - lib/pq: Code field (via error interface)
//   - go-sql-driver/mysql: SQLState [5]byte field, reported in the message
func sqlState(err error) string {
	type sqlStateErr interface{ SQLState() string }
	var se sqlStateErr
	if errors.As(err, &se) {
		return se.SQLState()
	}

	type codeErr interface{ Code() string }
	var ce codeErr
	if errors.As(err, &ce) {
		return ce.Code()
	}

	// Fallback: "... (SQLSTATE 42P01)", "SQLSTATE: 42P01" or MySQL's
	// "Error 1146 (42S02): ...".
	errStr := err.Error()
	for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
		if idx := strings.Index(errStr, prefix); idx >= 0 {
			start := idx + len(prefix)
			if start+5 <= len(errStr) && isSQLState(errStr[start:start+5]) {
				return errStr[start : start+5]
			}
		}
	}
	if strings.HasPrefix(errStr, "Error ") {
		if open := strings.Index(errStr, " ("); open >= 0 && open+7 < len(errStr) && errStr[open+7] == ')' {
			if code := errStr[open+2 : open+7]; isSQLState(code) {
				return code
			}
		}
	}
	return ""
}

func isSQLState(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
