package port_reader

import "time"

func NewLatestValue() *LatestValue {
	return &LatestValue{}
}

// Set overwrites the slot. Last writer wins.
func (l *LatestValue) Set(value string) {
	now := time.Now()
	l.mu.Lock()
	l.value = value
	l.updatedAt = now
	l.sequence++
	l.mu.Unlock()
}

func (l *LatestValue) Get() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}

func (l *LatestValue) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Value:     l.value,
		UpdatedAt: l.updatedAt,
		Sequence:  l.sequence,
	}
}
