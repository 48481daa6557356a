package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/shared"
)

func TestUniqueViolationMapsToConflict(t *testing.T) {
	wrapped := fmt.Errorf("insert role: %w", &pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, mapUnique(wrapped), shared.ErrConflict)

	otherCode := fmt.Errorf("insert role: %w", &pgconn.PgError{Code: "23503"})
	require.NotErrorIs(t, mapUnique(otherCode), shared.ErrConflict)

	plain := errors.New("connection reset")
	require.Equal(t, plain, mapUnique(plain))
}
