package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"content-forge-api/internal/domain/repository"
	apperrors "content-forge-api/pkg/errors"
)

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, transient: true},
		{name: "deadlock", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), transient: true},
		{name: "connection exception class", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, transient: false},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, transient: false},
		{name: "bad conn", err: driver.ErrBadConn, transient: true},
		{name: "reset by peer", err: errors.New("read tcp: connection reset by peer"), transient: true},
		{name: "plain error", err: errors.New("record invalid"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapErr("op", tt.err)
			if repository.IsTransient(got) != tt.transient {
				t.Fatalf("IsTransient(wrapErr(%v)) = %v, want %v", tt.err, !tt.transient, tt.transient)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("wrapped error lost its cause: %v", got)
			}
		})
	}
}

func TestWrapErr_PassesThroughAppErrors(t *testing.T) {
	if wrapErr("op", nil) != nil {
		t.Fatal("wrapErr(nil) should be nil")
	}
	err := wrapErr("tx", apperrors.ErrInsufficientCredits)
	if !apperrors.HasCode(err, apperrors.CodeInsufficientCredits) || repository.IsTransient(err) {
		t.Fatalf("business error altered: %v", err)
	}
}

func TestWrapCommitErr(t *testing.T) {
	if wrapCommitErr(nil) != nil {
		t.Fatal("wrapCommitErr(nil) should be nil")
	}

	rejected := wrapCommitErr(&pgconn.PgError{Code: "40001"})
	if !repository.IsTransient(rejected) {
		t.Fatalf("serialization failure at commit should be retryable: %v", rejected)
	}

	for _, err := range []error{
		driver.ErrBadConn,
		errors.New("write tcp: connection reset by peer"),
		&net.OpError{Op: "read", Err: errors.New("i/o timeout")},
	} {
		got := wrapCommitErr(err)
		if repository.IsTransient(got) {
			t.Fatalf("lost commit acknowledgement marked retryable: %v", got)
		}
		if !apperrors.HasCode(got, apperrors.CodeStoreTransient) || !errors.Is(got, err) {
			t.Fatalf("wrapCommitErr(%v) = %v", err, got)
		}
	}
}
