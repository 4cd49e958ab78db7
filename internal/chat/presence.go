package chat

import (
	"sort"
	"sync"
	"time"
)

// TypingTTL is how long a typing mark stays visible without a refresh.
const TypingTTL = 5 * time.Second

// presence tracks who is typing on which order. Entries are never persisted
// and expire lazily on read.
type presence struct {
	mu     sync.Mutex
	typing map[int64]map[string]time.Time // order id -> user id -> last typing mark
	now    func() time.Time
}

func newPresence(now func() time.Time) *presence {
	return &presence{
		typing: make(map[int64]map[string]time.Time),
		now:    now,
	}
}

func (p *presence) set(orderID int64, userID string, isTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !isTyping {
		if users, ok := p.typing[orderID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(p.typing, orderID)
			}
		}
		return
	}

	users, ok := p.typing[orderID]
	if !ok {
		users = make(map[string]time.Time)
		p.typing[orderID] = users
	}
	users[userID] = p.now()
}

// active evicts stale entries for the order and returns the remaining user
// ids, sorted for stable output.
func (p *presence) active(orderID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.typing[orderID]
	if !ok {
		return nil
	}

	cutoff := p.now().Add(-TypingTTL)
	var out []string
	for userID, mark := range users {
		if mark.Before(cutoff) {
			delete(users, userID)
			continue
		}
		out = append(out, userID)
	}
	if len(users) == 0 {
		delete(p.typing, orderID)
	}

	sort.Strings(out)
	return out
}
