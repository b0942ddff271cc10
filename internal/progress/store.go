package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JamesPrial/tasksync/internal/task"
)

// ErrNotFound is returned when no record exists for the owner and date.
var ErrNotFound = errors.New("daily progress not found")

// DailyProgress is the per-owner, per-day progress record.
type DailyProgress struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        string    `gorm:"uniqueIndex:idx_owner_date;not null" json:"ownerId"`
	Date           task.Date `gorm:"uniqueIndex:idx_owner_date;type:text;not null" json:"date"`
	TotalTasks     int       `json:"totalTasks"`
	CompletedTasks int       `json:"completedTasks"`
	DailyGoal      int       `json:"dailyGoal"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store persists DailyProgress records.
type Store interface {
	// Get returns the record for owner and date, or ErrNotFound.
	Get(ctx context.Context, ownerID string, date task.Date) (DailyProgress, error)

	// Create inserts rec and returns it with its id and timestamps set.
	Create(ctx context.Context, rec DailyProgress) (DailyProgress, error)

	// UpdateCounts sets today's totals on the record with the given id.
	UpdateCounts(ctx context.Context, id uint, total, completed int) error

	// UpdateGoal sets the goal on the record with the given id.
	UpdateGoal(ctx context.Context, id uint, goal int) error

	// List returns the owner's records, newest date first.
	List(ctx context.Context, ownerID string) ([]DailyProgress, error)

	Close() error
}

// GormStore is a Store on SQLite or PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (creating if needed) the SQLite progress database at
// dsn and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("progress store requires a database path")
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}
	return openGormStore(sqlite.Open(dsn))
}

// NewPostgresGormStore opens the progress tables in the PostgreSQL database
// at dsn and migrates the schema.
func NewPostgresGormStore(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("progress store requires a connection string")
	}
	return openGormStore(postgres.Open(dsn))
}

func openGormStore(dialector gorm.Dialector) (*GormStore, error) {
	dbLogger := logger.New(
		log.New(os.Stderr, "[progress] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	if err := db.AutoMigrate(&DailyProgress{}); err != nil {
		return nil, fmt.Errorf("failed to migrate progress database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, ownerID string, date task.Date) (DailyProgress, error) {
	var rec DailyProgress
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND date = ?", ownerID, date).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return DailyProgress{}, fmt.Errorf("%w: %s on %s", ErrNotFound, ownerID, date)
	case err != nil:
		return DailyProgress{}, fmt.Errorf("failed to get daily progress: %w", err)
	}
	return rec, nil
}

func (s *GormStore) Create(ctx context.Context, rec DailyProgress) (DailyProgress, error) {
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return DailyProgress{}, fmt.Errorf("failed to create daily progress: %w", err)
	}
	return rec, nil
}

func (s *GormStore) UpdateCounts(ctx context.Context, id uint, total, completed int) error {
	return s.update(ctx, id, map[string]any{
		"total_tasks":     total,
		"completed_tasks": completed,
	})
}

func (s *GormStore) UpdateGoal(ctx context.Context, id uint, goal int) error {
	return s.update(ctx, id, map[string]any{"daily_goal": goal})
}

func (s *GormStore) update(ctx context.Context, id uint, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&DailyProgress{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update daily progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, ownerID string) ([]DailyProgress, error) {
	var recs []DailyProgress
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("date DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily progress: %w", err)
	}
	return recs, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates the parent directory of a SQLite file DSN.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress database directory %q: %w", dir, err)
	}
	return nil
}
