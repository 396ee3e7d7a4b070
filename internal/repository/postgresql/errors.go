package postgresql

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/hub"
)

const uniqueViolation = "23505"

// conflictOnDuplicate turns a unique_violation into hub.ErrConflict. Rows that
// did not exist yet cannot be locked, so concurrent inserts of the same key
// only meet at the constraint.
func conflictOnDuplicate(err error, entity, key string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s %s already exists (%s)", hub.ErrConflict, entity, key, pgErr.ConstraintName)
	}
	return err
}
