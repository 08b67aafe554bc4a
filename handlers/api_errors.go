package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// error codes used across the attendance API
const (
	CodeInvalidInput          = "invalid_input"
	CodeDetectorUnavailable   = "detector_unavailable"
	CodeClassifierUnavailable = "classifier_unavailable"
	CodeNoTrainableData       = "no_trainable_data"
	CodePersistenceFailure    = "persistence_failure"
	CodeTrainingBusy          = "training_busy"
	CodeInternalError         = "internal_error"
	CodeNotFound              = "not_found"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}
