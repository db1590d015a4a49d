package domain

import "time"

// JournalEntry records one committed batch transaction.
type JournalEntry struct {
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	Items       int       `json:"items"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CommittedAt time.Time `json:"committed_at"`
}
