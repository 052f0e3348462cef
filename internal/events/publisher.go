package events

import (
	"log"
	"sync"
	"time"

	"wager-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeBetPlaced      Type = "bet_placed"
	TypeBetCancelled   Type = "bet_cancelled"
	TypeMarketResolved Type = "market_resolved"
	TypeMarketVoided   Type = "market_voided"
)

// Event is the engine's audit/notification payload.
type Event struct {
	Type     Type            `json:"type"`
	MarketID uuid.UUID       `json:"market_id"`
	BetID    *uuid.UUID      `json:"bet_id,omitempty"`
	BettorID uint            `json:"bettor_id,omitempty"`
	Currency models.Currency `json:"currency,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Outcome  *bool           `json:"outcome,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher fans engine events out to subscribers. Delivery is best-effort:
// a subscriber with a full buffer loses the event rather than blocking the
// engine's critical path.
type Publisher struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers a new listener with the given buffer size.
func (p *Publisher) Subscribe(buffer int) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Event, buffer)
	p.subs = append(p.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (p *Publisher) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for _, ch := range p.subs {
		select {
		case ch <- evt:
		default:
			log.Printf("[Events] Warning: subscriber buffer full, dropping %s event", evt.Type)
		}
	}
}

// Close shuts down all subscriber channels.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
}

// LogEvents drains a subscription and writes each event to the audit log.
// Intended to run as a goroutine; returns when the channel closes.
func LogEvents(ch <-chan Event) {
	for evt := range ch {
		if evt.BetID != nil {
			log.Printf("[Audit] %s market=%s bet=%s bettor=%d %s %s",
				evt.Type, evt.MarketID, evt.BetID, evt.BettorID, evt.Amount, evt.Currency)
			continue
		}
		log.Printf("[Audit] %s market=%s", evt.Type, evt.MarketID)
	}
}
