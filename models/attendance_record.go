package models

// AttendanceRecord mirrors one accepted attendance log row in the database.
// The CSV log remains the canonical append-only record; this table exists
// for filtered history queries. It corresponds to the 'attendance_records'
// table.
type AttendanceRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Date       string `gorm:"not null;index" json:"date"`
	Time       string `gorm:"not null" json:"time"`
	Name       string `gorm:"not null" json:"name"`
	ExternalID string `gorm:"not null;index" json:"external_id"`
	CreatedAt  int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
