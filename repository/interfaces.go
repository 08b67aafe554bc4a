package repository

import "github.com/attendly/attendancebackend/models"

// AttendanceHistoryFilter narrows an attendance history query. Zero values
// mean "no filter" for that field.
type AttendanceHistoryFilter struct {
	Date       string
	FromDate   string
	ToDate     string
	ExternalID string
	Limit      int
}

// AttendanceRepositoryInterface defines data access for mirrored attendance
// records.
type AttendanceRepositoryInterface interface {
	Create(rec *models.AttendanceRecord) error
	List(filter AttendanceHistoryFilter) ([]models.AttendanceRecord, error)
}
