package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owasp-nest/nest-api/internal/models"
)

// ProgramFilter narrows program list queries.
type ProgramFilter struct {
	Login    string
	Status   string
	Page     int
	PageSize int
}

// ProgramRepository persists mentorship programs.
type ProgramRepository interface {
	List(ctx context.Context, filter ProgramFilter) ([]models.Program, int64, error)
	GetByKey(ctx context.Context, key string) (models.Program, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	UpsertBatch(ctx context.Context, programs []models.Program) (int64, error)
}

type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository constructs the gorm implementation.
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

// List returns programs the login owns or administers.
func (r *programRepository) List(ctx context.Context, filter ProgramFilter) ([]models.Program, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Program{})

	if login := strings.TrimSpace(filter.Login); login != "" {
		query = query.Where(`owner_login = ? OR CAST(admin_logins AS TEXT) LIKE ? ESCAPE '\'`, login, `%"`+escapeLike(login)+`"%`)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var programs []models.Program
	if err := query.Order("updated_at DESC, id DESC").Find(&programs).Error; err != nil {
		return nil, 0, err
	}

	return programs, total, nil
}

func (r *programRepository) GetByKey(ctx context.Context, key string) (models.Program, error) {
	var program models.Program
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&program).Error
	return program, err
}

func (r *programRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Program{}).Where("key = ?", key).Count(&count).Error
	return count > 0, err
}

func (r *programRepository) Create(ctx context.Context, program *models.Program) error {
	return r.db.WithContext(ctx).Create(program).Error
}

func (r *programRepository) Update(ctx context.Context, program *models.Program) error {
	return r.db.WithContext(ctx).Save(program).Error
}

func (r *programRepository) UpsertBatch(ctx context.Context, programs []models.Program) (int64, error) {
	if len(programs) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "mentees_limit", "started_at", "ended_at",
			"tags", "domains", "admin_logins", "status", "owner_login", "updated_at",
		}),
	})

	result := tx.Create(&programs)
	return result.RowsAffected, result.Error
}
