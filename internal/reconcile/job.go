// Package reconcile implements the offline batch job that repairs drift
// between the denormalized follower/following counters on profile documents
// and the ground-truth relationship edges.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Counts is a pair of stored or computed follow totals for one user.
type Counts struct {
	Followers int64
	Following int64
}

// Discrepancy records one repaired (or, in dry-run, observed) counter drift.
type Discrepancy struct {
	UserID string
	Field  string // "followerCount" or "followingCount"
	Stored int64
	Actual int64
}

// Delta returns the signed difference between truth and the stored value.
func (d Discrepancy) Delta() int64 {
	return d.Actual - d.Stored
}

// Directory abstracts the document store for the job: user scan, edge
// counting, and counter repair. The Firestore implementation lives in this
// package; tests swap in a fake.
type Directory interface {
	// IterateUsers calls fn for every profile document with its stored
	// counter values.
	IterateUsers(ctx context.Context, fn func(userID string, stored Counts) error) error
	// CountFollowing returns the size of the user's `following`
	// subcollection.
	CountFollowing(ctx context.Context, userID string) (int64, error)
	// CountFollowers counts edges pointing at the user across all users'
	// `following` subcollections.
	CountFollowers(ctx context.Context, userID string) (int64, error)
	// UpdateCounts overwrites the stored counters with the computed truth.
	UpdateCounts(ctx context.Context, userID string, counts Counts) error
}

// Reporter receives the job's findings. The audit store implements it; a nil
// reporter is allowed.
type Reporter interface {
	RunStarted(ctx context.Context, runID string, startedAt time.Time) error
	Discrepancy(ctx context.Context, runID string, d Discrepancy) error
	RunFinished(ctx context.Context, runID string, usersScanned, repaired int) error
}

// Result summarizes one run.
type Result struct {
	UsersScanned  int
	Discrepancies []Discrepancy
}

// Job recomputes true follow counts for every user and overwrites stored
// counters that differ. Running it twice back to back with no edge changes in
// between finds nothing the second time.
type Job struct {
	dir      Directory
	reporter Reporter
	dryRun   bool
}

func NewJob(dir Directory, reporter Reporter, dryRun bool) *Job {
	return &Job{dir: dir, reporter: reporter, dryRun: dryRun}
}

// Run scans every user, compares stored counters against recomputed edge
// counts, and repairs mismatches. Every discrepancy is logged with its signed
// delta before the job exits.
func (j *Job) Run(ctx context.Context, runID string) (*Result, error) {
	start := time.Now()
	log.Printf("[Reconcile] Run starting: id=%s dryRun=%v", runID, j.dryRun)

	if j.reporter != nil {
		if err := j.reporter.RunStarted(ctx, runID, start); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	result := &Result{}
	err := j.dir.IterateUsers(ctx, func(userID string, stored Counts) error {
		result.UsersScanned++

		actual, err := j.recount(ctx, userID)
		if err != nil {
			return fmt.Errorf("recount user %s: %w", userID, err)
		}

		var found []Discrepancy
		if stored.Followers != actual.Followers {
			found = append(found, Discrepancy{
				UserID: userID,
				Field:  "followerCount",
				Stored: stored.Followers,
				Actual: actual.Followers,
			})
		}
		if stored.Following != actual.Following {
			found = append(found, Discrepancy{
				UserID: userID,
				Field:  "followingCount",
				Stored: stored.Following,
				Actual: actual.Following,
			})
		}
		if len(found) == 0 {
			return nil
		}

		for _, d := range found {
			log.Printf("[Reconcile] Drift: user=%s field=%s stored=%d actual=%d delta=%+d",
				d.UserID, d.Field, d.Stored, d.Actual, d.Delta())
			if j.reporter != nil {
				if err := j.reporter.Discrepancy(ctx, runID, d); err != nil {
					return fmt.Errorf("record discrepancy: %w", err)
				}
			}
		}
		result.Discrepancies = append(result.Discrepancies, found...)

		if j.dryRun {
			return nil
		}
		if err := j.dir.UpdateCounts(ctx, userID, actual); err != nil {
			return fmt.Errorf("repair user %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	repaired := len(result.Discrepancies)
	if j.dryRun {
		repaired = 0
	}
	if j.reporter != nil {
		if err := j.reporter.RunFinished(ctx, runID, result.UsersScanned, repaired); err != nil {
			return nil, fmt.Errorf("record run finish: %w", err)
		}
	}

	log.Printf("[Reconcile] Run finished: id=%s users=%d drifted=%d duration=%v",
		runID, result.UsersScanned, len(result.Discrepancies), time.Since(start))
	return result, nil
}

func (j *Job) recount(ctx context.Context, userID string) (Counts, error) {
	following, err := j.dir.CountFollowing(ctx, userID)
	if err != nil {
		return Counts{}, fmt.Errorf("count following: %w", err)
	}
	followers, err := j.dir.CountFollowers(ctx, userID)
	if err != nil {
		return Counts{}, fmt.Errorf("count followers: %w", err)
	}
	return Counts{Followers: followers, Following: following}, nil
}
