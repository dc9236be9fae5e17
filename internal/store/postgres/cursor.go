package postgres

import (
	"strconv"

	"github.com/vespid-ai/control-plane/internal/store"
)

// cursorWhere returns the extra SQL predicate (and its args, starting at
// $argBase) for the {createdAt, id} descending keyset pagination used across
// spec §6's list endpoints. Returns "" when cursor is the zero value (first
// page).
func cursorWhere(cursor store.Cursor, argBase int) (string, []any) {
	if cursor.CreatedAt.IsZero() {
		return "", nil
	}
	return "(created_at, id) < ($" + strconv.Itoa(argBase) + ", $" + strconv.Itoa(argBase+1) + ")", []any{cursor.CreatedAt, cursor.ID}
}
