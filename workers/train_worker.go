package workers

import (
	"log"
	"sync"

	"github.com/attendly/attendancebackend/services"
)

// TrainFunc runs one full training pass and reports its outcome.
type TrainFunc func() (services.TrainSummary, error)

// TrainResult is delivered on a job's reply channel once its run finishes.
type TrainResult struct {
	Summary services.TrainSummary
	Err     error
}

type trainJob struct {
	reply chan TrainResult
}

// TrainScheduler serializes retrains on a single background worker so
// concurrent recognition requests keep reading the previous snapshot while a
// retrain is in flight. Callers receive the run's outcome over a reply
// channel.
type TrainScheduler struct {
	jobQueue chan trainJob
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	train    TrainFunc
}

func NewTrainScheduler(train TrainFunc, queueSize int) *TrainScheduler {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &TrainScheduler{
		jobQueue: make(chan trainJob, queueSize),
		stopChan: make(chan struct{}),
		train:    train,
	}
	s.wg.Add(1)
	go s.worker()
	log.Printf("Started training worker with queue size %d", queueSize)
	return s
}

func (s *TrainScheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case job, ok := <-s.jobQueue:
			if !ok {
				log.Println("Training worker stopping: job queue closed")
				return
			}
			summary, err := s.train()
			if err != nil {
				log.Printf("Training worker: run failed: %v", err)
			} else {
				log.Printf("Training worker: run complete (%d samples, %d persons)", summary.SampleCount, summary.PersonCount)
			}
			job.reply <- TrainResult{Summary: summary, Err: err}
		case <-s.stopChan:
			log.Println("Training worker stopping: stop signal received")
			return
		}
	}
}

// Enqueue schedules a training run and returns the channel its result will
// be delivered on. Returns false when the queue is full.
func (s *TrainScheduler) Enqueue() (<-chan TrainResult, bool) {
	job := trainJob{reply: make(chan TrainResult, 1)}
	select {
	case s.jobQueue <- job:
		return job.reply, true
	default:
		log.Println("WARNING: training job queue full, rejecting request")
		return nil, false
	}
}

func (s *TrainScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	log.Println("Training worker stopped")
}
