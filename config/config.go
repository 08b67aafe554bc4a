package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultCorpusSubDir = "known_faces_images"

	defaultModelFile         = "lbph_face_model.yml"
	defaultRegistryFile      = "lbph_face_model_labels.json"
	defaultAttendanceLogFile = "attendance_log_lbph.csv"
	defaultAttendanceDBFile  = "attendance.db"

	defaultRecognitionThreshold = 80.0
	defaultMinLogIntervalSecs   = 10
	defaultSampleSize           = 100
	defaultTrainQueueSize       = 16
)

type Config struct {
	// data root (corpus, model files and logs live underneath by default)
	DataDirectory string

	// training corpus directory (per-person subfolders of sample images)
	CorpusPath string

	// persisted classifier state and its paired label registry
	ModelPath    string
	RegistryPath string

	// attendance storage
	AttendanceLogPath string
	AttendanceDBPath  string

	// Haar cascade XML used for face detection
	CascadePath string

	// recognition settings
	RecognitionThreshold float64 // LBPH distance; lower means more similar
	SampleSize           int     // canonical face crop is SampleSize x SampleSize

	// attendance dedup settings
	MinLogInterval time.Duration
	Timezone       *time.Location

	// training worker settings
	TrainQueueSize int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dataDir := getEnvOrDefault("DATA_DIRECTORY", ".")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataDir, err)
	}

	corpusPath := getEnvOrDefault("CORPUS_PATH", filepath.Join(absDataDir, DefaultCorpusSubDir))
	modelPath := getEnvOrDefault("MODEL_PATH", filepath.Join(absDataDir, defaultModelFile))
	registryPath := getEnvOrDefault("REGISTRY_PATH", filepath.Join(absDataDir, defaultRegistryFile))
	logPath := getEnvOrDefault("ATTENDANCE_LOG_PATH", filepath.Join(absDataDir, defaultAttendanceLogFile))
	dbPath := getEnvOrDefault("ATTENDANCE_DB_PATH", filepath.Join(absDataDir, defaultAttendanceDBFile))

	cascadePath := getEnvOrDefault("HAARCASCADE_PATH", "./models/haarcascade_frontalface_default.xml")

	threshold := getEnvFloatOrDefault("RECOGNITION_THRESHOLD", defaultRecognitionThreshold)
	sampleSize := getEnvIntOrDefault("SAMPLE_SIZE", defaultSampleSize)
	minInterval := getEnvIntOrDefault("MIN_LOG_INTERVAL_SECONDS", defaultMinLogIntervalSecs)
	queueSize := getEnvIntOrDefault("TRAIN_QUEUE_SIZE", defaultTrainQueueSize)

	// attendance dates and times are always rendered in this zone; the dedup
	// day-key follows the same zone so "one record per day" has one meaning
	tzName := getEnvOrDefault("ATTENDANCE_TZ", "Local")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ATTENDANCE_TZ '%s': %w", tzName, err)
	}

	cfg := Config{
		DataDirectory:        absDataDir,
		CorpusPath:           corpusPath,
		ModelPath:            modelPath,
		RegistryPath:         registryPath,
		AttendanceLogPath:    logPath,
		AttendanceDBPath:     dbPath,
		CascadePath:          cascadePath,
		RecognitionThreshold: threshold,
		SampleSize:           sampleSize,
		MinLogInterval:       time.Duration(minInterval) * time.Second,
		Timezone:             loc,
		TrainQueueSize:       queueSize,
	}

	return cfg, nil
}
