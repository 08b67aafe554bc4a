package attendance

import (
	"log"
	"sync"
	"time"
)

// RecordSink receives accepted records in addition to the CSV log. The
// database mirror implements this; failures there never affect the dedup
// decision or the canonical log.
type RecordSink interface {
	Insert(rec Record) error
}

// Ledger suppresses duplicate attendance for the same identity within a
// minimum interval, keyed per (name, external id, day). The dedup map lives
// only in process memory; a restart may re-admit one record per identity per
// day, which is accepted behavior.
type Ledger struct {
	csvLog      *CSVLog
	mirror      RecordSink
	minInterval time.Duration
	loc         *time.Location

	mu       sync.Mutex
	lastSeen map[string]time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

func NewLedger(csvLog *CSVLog, mirror RecordSink, minInterval time.Duration, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		csvLog:      csvLog,
		mirror:      mirror,
		minInterval: minInterval,
		loc:         loc,
		lastSeen:    make(map[string]time.Time),
		stopChan:    make(chan struct{}),
		now:         time.Now,
	}
}

func dedupKey(name, externalID, date string) string {
	return name + "\x1f" + externalID + "\x1f" + date
}

// Mark records attendance for a recognized identity unless the same identity
// was already accepted within the minimum interval today. It returns whether
// the event was accepted; a storage-write failure is returned alongside an
// accepted decision and never rolls the decision back.
func (l *Ledger) Mark(name, externalID string) (bool, error) {
	now := l.now().In(l.loc)
	date := now.Format("2006-01-02")
	key := dedupKey(name, externalID, date)

	l.mu.Lock()
	last, seen := l.lastSeen[key]
	if seen && now.Sub(last) <= l.minInterval {
		l.mu.Unlock()
		return false, nil
	}
	l.lastSeen[key] = now
	l.mu.Unlock()

	rec := Record{
		Date:       date,
		Time:       now.Format("15:04:05"),
		Name:       name,
		ExternalID: externalID,
	}

	var writeErr error
	if err := l.csvLog.Append(rec); err != nil {
		log.Printf("ledger: failed to append attendance for %s (%s): %v", name, externalID, err)
		writeErr = err
	} else {
		log.Printf("ledger: attendance marked for %s (%s) at %s", name, externalID, rec.Time)
	}

	if l.mirror != nil {
		if err := l.mirror.Insert(rec); err != nil {
			log.Printf("ledger: failed to mirror attendance record for %s (%s): %v", name, externalID, err)
		}
	}

	return true, writeErr
}

// StartSweeper evicts dedup entries older than a day on a periodic sweep so
// the in-memory map stays bounded.
func (l *Ledger) StartSweeper(interval time.Duration) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stopChan:
				return
			}
		}
	}()
	log.Printf("ledger: dedup sweeper started (interval %s)", interval)
}

func (l *Ledger) sweep() {
	cutoff := l.now().In(l.loc).Add(-24 * time.Hour)
	l.mu.Lock()
	removed := 0
	for key, ts := range l.lastSeen {
		if ts.Before(cutoff) {
			delete(l.lastSeen, key)
			removed++
		}
	}
	l.mu.Unlock()
	if removed > 0 {
		log.Printf("ledger: swept %d expired dedup entries", removed)
	}
}

func (l *Ledger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
}
