package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"content-forge-api/internal/domain/repository"
	apperrors "content-forge-api/pkg/errors"
)

// transientSQLStates 可重试的 SQLSTATE
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// wrapErr 附加操作名；瞬时错误标记为可重试，已是业务错误的原样返回
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) || repository.IsTransient(err) {
		return err
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if isTransient(err) {
		return repository.MarkTransient(wrapped)
	}
	return wrapped
}

// wrapCommitErr 服务端明确拒绝的 COMMIT 已回滚，按普通错误分类；
// 没有收到答复时事务可能已生效，重试会重复扣减，因此不标记为可重试
func wrapCommitErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapErr("commit", err)
	}
	return apperrors.ErrStoreTransient.WithDetail("commit outcome unknown").WithError(err)
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLStates[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused")
}
