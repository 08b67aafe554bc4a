package repository

import (
	"github.com/attendly/attendancebackend/attendance"
	"github.com/attendly/attendancebackend/models"
)

// AttendanceMirror adapts the repository to the ledger's RecordSink so every
// accepted attendance record lands in the database alongside the CSV log.
type AttendanceMirror struct {
	Repo AttendanceRepositoryInterface
}

func (m *AttendanceMirror) Insert(rec attendance.Record) error {
	return m.Repo.Create(&models.AttendanceRecord{
		Date:       rec.Date,
		Time:       rec.Time,
		Name:       rec.Name,
		ExternalID: rec.ExternalID,
	})
}
