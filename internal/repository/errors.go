package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrNotFound 引用的记录在提交时不存在
	ErrNotFound = errors.New("record not found")

	// ErrCommitFailed 乐观并发冲突：参与事务的记录在读取后已被修改
	ErrCommitFailed = errors.New("commit failed")

	// ErrStoreUnavailable 存储传输层故障
	ErrStoreUnavailable = errors.New("store unavailable")
)

// classifyError 将驱动错误归类到仓库错误
// SQLSTATE 40001/40P01 → ErrCommitFailed；连接类错误（08xxx、ErrBadConn、网络错误）→ ErrStoreUnavailable
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCommitFailed) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001" || pqErr.Code == "40P01":
			return fmt.Errorf("%s: %w: %w", op, ErrCommitFailed, err)
		case pqErr.Code.Class() == "08":
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation SQLSTATE 23505
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
