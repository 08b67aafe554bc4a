package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/attendly/attendancebackend/attendance"
	"github.com/attendly/attendancebackend/config"
	"github.com/attendly/attendancebackend/corpus"
	"github.com/attendly/attendancebackend/database"
	"github.com/attendly/attendancebackend/handlers"
	"github.com/attendly/attendancebackend/recognition"
	"github.com/attendly/attendancebackend/repository"
	"github.com/attendly/attendancebackend/services"
	"github.com/attendly/attendancebackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	log.Printf("Ensuring data directory exists: %s", cfg.DataDirectory)
	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		log.Fatalf("FATAL: Failed to create data directory %s: %v", cfg.DataDirectory, err)
	}

	db, err := database.InitGormDB(cfg.AttendanceDBPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	attendanceRepo := repository.NewAttendanceRepository(db)
	csvLog := attendance.NewCSVLog(cfg.AttendanceLogPath)
	ledger := attendance.NewLedger(csvLog, &repository.AttendanceMirror{Repo: attendanceRepo}, cfg.MinLogInterval, cfg.Timezone)
	ledger.StartSweeper(time.Hour)
	defer ledger.Stop()

	corpusStore, err := corpus.NewStore(cfg.CorpusPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize corpus store: %v", err)
	}

	// a missing cascade degrades detection-dependent endpoints but the
	// process stays up for inspection
	detector, err := recognition.NewCascadeDetector(cfg.CascadePath)
	if err != nil {
		log.Printf("ERROR: Face detector unavailable: %v", err)
		log.Printf("ERROR: Train and scan endpoints will fail until the cascade file is provided")
	}

	service := services.NewRecognitionService(cfg, detector, corpusStore, ledger)
	defer service.Close()

	if detector != nil {
		if err := service.LoadOrTrain(); err != nil {
			log.Printf("ERROR: Initial model load/train failed: %v", err)
		}
	}

	scheduler := workers.NewTrainScheduler(service.Train, cfg.TrainQueueSize)
	defer scheduler.Stop()

	log.Printf("Using training corpus: %s", cfg.CorpusPath)
	log.Printf("Using model state: %s (registry %s)", cfg.ModelPath, cfg.RegistryPath)
	log.Printf("Attendance log: %s (mirror DB %s)", cfg.AttendanceLogPath, cfg.AttendanceDBPath)
	log.Printf("Recognition threshold: %g, dedup interval: %s", cfg.RecognitionThreshold, cfg.MinLogInterval)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(corsHandler.Handler)

	recognitionHandler := &handlers.RecognitionHandler{Service: service, Scheduler: scheduler}
	attendanceHandler := &handlers.AttendanceHandler{Log: csvLog, Repo: attendanceRepo}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Face Recognition Attendance Backend is running."))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/train", recognitionHandler.Train)
		r.Post("/register", recognitionHandler.Register)
		r.Post("/scan", recognitionHandler.Scan)

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", attendanceHandler.ListHistory)
			r.Get("/log", attendanceHandler.GetLog)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
