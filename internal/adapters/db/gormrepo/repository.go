// Package gormrepo stores messages through gorm on PostgreSQL or SQLite.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/ports"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository implements ports.MessageRepository.
type Repository struct {
	db   *gorm.DB
	inTx bool
}

// Open connects with the named driver ("postgres" or "sqlite") and pings the database.
func Open(driver, dsn string) (*Repository, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if driver == "sqlite" {
		// One connection serialises writers and keeps in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return &Repository{db: db}, nil
}

// Migrate creates or updates the messages table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&messageRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Tables lists the tables present in the connected database.
func (r *Repository) Tables(ctx context.Context) ([]string, error) {
	tables, err := r.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) Save(ctx context.Context, msg domain.Message) error {
	rec := toRecord(msg)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, msg domain.Message) error {
	rec := toRecord(msg)
	res := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"status":         rec.Status,
			"failure_reason": rec.FailureReason,
			"updated_at":     rec.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	q := r.db.WithContext(ctx)
	if r.inTx && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec messageRecord
	if err := q.Where("id = ?", id.String()).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, domain.ErrMessageNotFound
		}
		return domain.Message{}, fmt.Errorf("select message: %w", err)
	}
	return rec.toDomain()
}

func (r *Repository) ListByUser(ctx context.Context, phone string, status *domain.Status, page domain.PageRequest) (domain.MessagePage, error) {
	q := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("(sender = ? OR recipient = ?)", phone, phone)
	if status != nil {
		q = q.Where("status = ?", status.String())
	}
	return r.page(q.Session(&gorm.Session{}), "created_at DESC", page)
}

func (r *Repository) ListFailed(ctx context.Context, page domain.PageRequest) (domain.MessagePage, error) {
	q := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("status = ?", domain.StatusFailed.String()).
		Session(&gorm.Session{})
	return r.page(q, "updated_at DESC", page)
}

func (r *Repository) page(q *gorm.DB, order string, page domain.PageRequest) (domain.MessagePage, error) {
	res := domain.MessagePage{PageRequest: page, Messages: []domain.Message{}}

	if err := q.Count(&res.Total).Error; err != nil {
		return domain.MessagePage{}, fmt.Errorf("count messages: %w", err)
	}

	var recs []messageRecord
	if err := q.Order(order).Offset(page.Offset()).Limit(page.Size).Find(&recs).Error; err != nil {
		return domain.MessagePage{}, fmt.Errorf("select messages: %w", err)
	}

	for _, rec := range recs {
		m, err := rec.toDomain()
		if err != nil {
			return domain.MessagePage{}, err
		}
		res.Messages = append(res.Messages, m)
	}
	return res, nil
}

func (r *Repository) CountByStatus(ctx context.Context) (domain.Stats, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Select("status, count(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count by status: %w", err)
	}

	var st domain.Stats
	for _, row := range rows {
		st.Total += row.N
		switch row.Status {
		case domain.StatusPending.String():
			st.Pending = row.N
		case domain.StatusSent.String():
			st.Sent = row.N
		case domain.StatusFailed.String():
			st.Failed = row.N
		}
	}
	return st, nil
}

func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Message, error) {
	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusPending.String(), olderThan.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("select stale pending: %w", err)
	}

	out := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		m, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Repository) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.MessageRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Repository{db: tx, inTx: true})
	})
}
