package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/attendly/attendancebackend/recognition"
	"github.com/attendly/attendancebackend/services"
	"github.com/attendly/attendancebackend/workers"
)

const maxUploadBytes = 32 << 20

// RecognitionHandler exposes the train/register/scan operations over HTTP.
type RecognitionHandler struct {
	Service   *services.RecognitionService
	Scheduler *workers.TrainScheduler
}

// Train triggers a full retrain on the training worker and reports the
// sample and person counts of the resulting model.
func (rh *RecognitionHandler) Train(w http.ResponseWriter, r *http.Request) {
	log.Println("Received request to train model")
	reply, ok := rh.Scheduler.Enqueue()
	if !ok {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeTrainingBusy, "Training queue is full, try again later")
		return
	}

	select {
	case result := <-reply:
		if result.Err != nil {
			writeTrainError(w, result.Err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Model training complete",
			"summary": result.Summary,
		})
	case <-r.Context().Done():
		WriteAPIError(w, http.StatusServiceUnavailable, CodeTrainingBusy, "Request cancelled while training was in progress")
	}
}

// Register stores a new sample image for an identity and retrains the model
// so the new face takes effect immediately.
func (rh *RecognitionHandler) Register(w http.ResponseWriter, r *http.Request) {
	log.Println("Received request to register face")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid multipart form: "+err.Error())
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	externalID := strings.TrimSpace(r.FormValue("roll_no"))
	imageData, err := readUploadedImage(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	if name == "" || externalID == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Name, Roll Number, and Image are required")
		return
	}

	if _, err := rh.Service.RegisterSample(name, externalID, imageData); err != nil {
		if errors.Is(err, recognition.ErrInvalidImage) {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid image file provided")
			return
		}
		log.Printf("Error saving registration sample for %s (%s): %v", name, externalID, err)
		WriteAPIError(w, http.StatusInternalServerError, CodePersistenceFailure, "Failed to store registration sample")
		return
	}

	reply, ok := rh.Scheduler.Enqueue()
	if !ok {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeTrainingBusy, "Sample stored but training queue is full; retrain later")
		return
	}

	select {
	case result := <-reply:
		if result.Err != nil {
			writeTrainError(w, result.Err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Successfully registered " + name + " (" + externalID + ") and retrained model",
			"summary": result.Summary,
		})
	case <-r.Context().Done():
		WriteAPIError(w, http.StatusServiceUnavailable, CodeTrainingBusy, "Sample stored; request cancelled while retraining")
	}
}

// Scan classifies every face in an uploaded image and marks attendance for
// recognized identities.
func (rh *RecognitionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	log.Println("Received request to scan image")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid multipart form: "+err.Error())
		return
	}

	imageData, err := readUploadedImage(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	result, err := rh.Service.Scan(imageData)
	if err != nil {
		switch {
		case errors.Is(err, recognition.ErrInvalidImage):
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid image file provided")
		case errors.Is(err, recognition.ErrDetectorUnavailable):
			WriteAPIError(w, http.StatusInternalServerError, CodeDetectorUnavailable, "Face detection system not initialized on backend")
		case errors.Is(err, recognition.ErrClassifierUnavailable):
			WriteAPIError(w, http.StatusInternalServerError, CodeClassifierUnavailable, "Face recognition model not available; register faces and train first")
		default:
			log.Printf("Error during image scan: %v", err)
			WriteAPIError(w, http.StatusInternalServerError, CodeInternalError, "An error occurred during scanning")
		}
		return
	}

	if !result.FaceFound {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "No face detected in the uploaded image",
			"face_found": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeTrainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recognition.ErrNoTrainableData):
		WriteAPIError(w, http.StatusInternalServerError, CodeNoTrainableData, "No usable faces found for training; add sample images first")
	case errors.Is(err, recognition.ErrDetectorUnavailable):
		WriteAPIError(w, http.StatusInternalServerError, CodeDetectorUnavailable, "Face detection system not initialized on backend")
	default:
		WriteAPIError(w, http.StatusInternalServerError, CodePersistenceFailure, "Model training failed: "+err.Error())
	}
}

func readUploadedImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, errors.New("failed to read uploaded image")
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded image is empty")
	}
	return data, nil
}
