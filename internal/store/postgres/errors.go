package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgxErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
