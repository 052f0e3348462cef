package jobs

import (
	"context"
	"log"
	"time"

	"wager-engine/internal/services"
)

// SettlementRetrier periodically resumes markets stuck in LOCKED state, so a
// settlement interrupted by credit failures or a crash always reaches a
// terminal outcome.
type SettlementRetrier struct {
	resolution *services.ResolutionService
	interval   time.Duration
	stopChan   chan struct{}
}

// NewSettlementRetrier creates a new settlement retry job
func NewSettlementRetrier(resolution *services.ResolutionService, interval time.Duration) *SettlementRetrier {
	return &SettlementRetrier{
		resolution: resolution,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the retry loop. Blocks; run it in a goroutine.
func (sr *SettlementRetrier) Start() {
	log.Printf("[SettlementRetrier] Starting settlement retry job (interval: %v)", sr.interval)

	ticker := time.NewTicker(sr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sr.resolution.ResumePending(context.Background())
		case <-sr.stopChan:
			log.Println("[SettlementRetrier] Stopping settlement retry job")
			return
		}
	}
}

// Stop stops the retry loop
func (sr *SettlementRetrier) Stop() {
	close(sr.stopChan)
}
