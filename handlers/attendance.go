package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/attendly/attendancebackend/attendance"
	"github.com/attendly/attendancebackend/models"
	"github.com/attendly/attendancebackend/repository"
)

// AttendanceHandler serves the raw attendance log and the filtered history
// mirrored in the database.
type AttendanceHandler struct {
	Log  *attendance.CSVLog
	Repo repository.AttendanceRepositoryInterface
}

// GetLog returns the raw tabular attendance log bytes.
func (ah *AttendanceHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	log.Println("Received request to get attendance log")

	data, err := ah.Log.ReadAll()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Attendance log file not found")
			return
		}
		log.Printf("Error reading attendance log: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodePersistenceFailure, "Error reading attendance log file")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing attendance log response: %v", err)
	}
}

// ListHistory returns mirrored attendance records, optionally filtered by
// date range and external id.
func (ah *AttendanceHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.AttendanceHistoryFilter{
		Date:       query.Get("date"),
		FromDate:   query.Get("from"),
		ToDate:     query.Get("to"),
		ExternalID: query.Get("external_id"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid limit parameter")
			return
		}
		filter.Limit = limit
	}

	records, err := ah.Repo.List(filter)
	if err != nil {
		log.Printf("Error listing attendance history: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodePersistenceFailure, "Failed to retrieve attendance history")
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
