/**
 * @description
 * Scheduled job implementations. The only job today is the stale-pending
 * sweep: any payment attempt whose callback never arrived (provider outage,
 * lost webhook) would otherwise sit in `pending` forever with no way to
 * resolve it.
 */
package app

import (
	"context"
	"log"
	"time"

	"github.com/benardngware/somanamimi2/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   store.Repository
	maxAge time.Duration
}

// NewJobs creates a new Jobs runner. maxAge bounds how long an attempt may
// stay pending before the sweep fails it.
func NewJobs(repo store.Repository, maxAge time.Duration) *Jobs {
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}
	return &Jobs{repo: repo, maxAge: maxAge}
}

// ExpireStalePendingPayments fails pending attempts older than the configured
// window. The transition uses the same pending-gated conditional update as
// the callback path, so a sweep racing a late callback cannot double-apply.
func (j *Jobs) ExpireStalePendingPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.maxAge)
	expired, err := j.repo.ExpireStalePendingPayments(ctx, cutoff)
	if err != nil {
		log.Printf("level=error component=sweep msg=\"stale pending sweep failed\" err=%v", err)
		return
	}
	if expired > 0 {
		log.Printf("level=info component=sweep msg=\"expired stale pending payments\" count=%d cutoff=%s", expired, cutoff.Format(time.RFC3339))
	}
}
