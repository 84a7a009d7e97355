package moderation

import (
	"fmt"
	"log"
	"sync"

	"github.com/parley-chat/parley/backend/internal/models"
)

// blockThreshold is the report count at and above which a user is blocked.
const blockThreshold = 3

// ReportStore is the slice of the persistence collaborator the aggregator
// needs.
type ReportStore interface {
	ListReports() ([]models.ReportRecord, error)
	InsertReport(reporterID, reportedUserID, reason string) error
}

// Aggregator accumulates report records into per-user counts and derives
// the block predicate from them. Counts only ever grow: records are
// append-only and each ReportInserted event increments exactly one user's
// count. The blocked state is recomputed from the live count on every
// read, never cached.
type Aggregator struct {
	actorID string
	store   ReportStore

	mu       sync.RWMutex
	counts   map[string]int
	reported map[string]bool // users the actor has already reported
}

// NewAggregator creates an empty aggregator for the given actor.
func NewAggregator(actorID string, store ReportStore) *Aggregator {
	return &Aggregator{
		actorID:  actorID,
		store:    store,
		counts:   make(map[string]int),
		reported: make(map[string]bool),
	}
}

// Load seeds the aggregator from a snapshot of all report records. A
// failed fetch degrades to empty counts; live events still accumulate.
func (a *Aggregator) Load() {
	reports, err := a.store.ListReports()
	if err != nil {
		log.Printf("[Moderation] Failed to load reports, starting empty: %v", err)
		return
	}
	for _, report := range reports {
		a.ApplyInsert(report)
	}
	log.Printf("[Moderation] Loaded %d reports", len(reports))
}

// ApplyInsert folds one report record into the aggregate: the reported
// user's count goes up by one, and when the reporter is the actor the
// target joins the already-reported set.
func (a *Aggregator) ApplyInsert(report models.ReportRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[report.ReportedUserID]++
	if report.ReporterID == a.actorID {
		a.reported[report.ReportedUserID] = true
	}
}

// SubmitReport files a report against a user. Reporting yourself is
// rejected locally; the aggregate itself only changes when the insert
// event comes back on the feed.
func (a *Aggregator) SubmitReport(reportedUserID, reason string) error {
	if a.actorID == "" {
		return models.ErrNotAuthenticated
	}
	if reportedUserID == a.actorID {
		return models.ErrSelfReport
	}

	if err := a.store.InsertReport(a.actorID, reportedUserID, reason); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}

// ReportCount returns how many times a user has been reported.
func (a *Aggregator) ReportCount(userID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[userID]
}

// IsBlocked reports whether a user has crossed the block threshold.
func (a *Aggregator) IsBlocked(userID string) bool {
	return a.ReportCount(userID) >= blockThreshold
}

// HasReported reports whether the actor has already reported a user.
func (a *Aggregator) HasReported(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reported[userID]
}

// Status returns the full derived moderation view of a user.
func (a *Aggregator) Status(userID string) models.ModerationStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := a.counts[userID]
	return models.ModerationStatus{
		UserID:      userID,
		ReportCount: count,
		Blocked:     count >= blockThreshold,
		Reported:    a.reported[userID],
	}
}
