package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/field-tools/pkg/database"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// querier returns the scoped connection stored in ctx.
func querier(ctx context.Context) (database.Querier, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}
	return scope.Conn, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// jsonbValue marshals v for a JSONB column. Empty maps and slices are stored as NULL.
func jsonbValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	case []map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// unmarshalJSONB decodes a nullable JSONB column into dst. NULL leaves dst untouched.
func unmarshalJSONB(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// whereClause joins exact-match conditions with AND and numbers the
// placeholders. Conditions with empty values are left out.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) eq(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
