package postgresql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"flamenco-core/internal/entity"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, entity.ErrNotFound},
		{"duplicate service account", &pgconn.PgError{Code: "23505", ConstraintName: "managers_service_account_key"}, entity.ErrConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, entity.ErrConflict},
		{"deadlock", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), entity.ErrConflict},
		{"domain error passes through", entity.ErrIllegalTransition, entity.ErrIllegalTransition},
		{"other driver error", &pgconn.PgError{Code: "08006"}, entity.ErrStoreUnavailable},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tc := range cases {
		if got := mapErr(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if mapErr(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	unique := mapErr(&pgconn.PgError{Code: "23505"})
	if errors.Is(unique, entity.ErrStoreUnavailable) {
		t.Fatalf("expected unique violation not to read as store unavailable, got %v", unique)
	}
}
