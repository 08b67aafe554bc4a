package repository

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/attendly/attendancebackend/models"
)

// AttendanceRepository handles database operations for mirrored attendance
// records. Inserts go through GORM; the filtered history query is built with
// squirrel over the same connection.
type AttendanceRepository struct {
	DB *gorm.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

// Create inserts a new attendance record
func (r *AttendanceRepository) Create(rec *models.AttendanceRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	err := r.DB.Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to create attendance record for %s (%s): %w", rec.Name, rec.ExternalID, err)
	}
	return nil
}

// List returns attendance records matching the filter, newest first
func (r *AttendanceRepository) List(filter AttendanceHistoryFilter) ([]models.AttendanceRecord, error) {
	queryBuilder := sq.Select("id", "date", "time", "name", "external_id", "created_at").
		From("attendance_records").
		OrderBy("id DESC")

	if filter.Date != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"date": filter.Date})
	}
	if filter.FromDate != "" {
		queryBuilder = queryBuilder.Where(sq.GtOrEq{"date": filter.FromDate})
	}
	if filter.ToDate != "" {
		queryBuilder = queryBuilder.Where(sq.LtOrEq{"date": filter.ToDate})
	}
	if filter.ExternalID != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"external_id": filter.ExternalID})
	}
	if filter.Limit > 0 {
		queryBuilder = queryBuilder.Limit(uint64(filter.Limit))
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for attendance history: %w", err)
	}

	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	rows, err := sqlDB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute attendance history query: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Time, &rec.Name, &rec.ExternalID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance record rows: %w", err)
	}
	return records, nil
}
