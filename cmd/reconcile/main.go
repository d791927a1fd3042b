// Command reconcile recomputes follower/following counters from the
// relationship edges and repairs drifted profile documents. It is an offline
// one-shot batch; run it from cron or by hand after an incident.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/stampbook-app/stampbook-backend/internal/audit"
	"github.com/stampbook-app/stampbook-backend/internal/reconcile"
)

var (
	dataProject = flag.String("data-project", "", "GCP project that contains the application state.")
	auditDSN    = flag.String("audit-dsn", "", "Postgres DSN for recording run history. Empty disables auditing.")
	dryRun      = flag.Bool("dry-run", false, "Report drift without repairing it.")
)

func main() {
	flag.Parse()

	if *dataProject == "" {
		log.Fatal("missing required flag: -data-project")
	}

	ctx := context.Background()

	if err := do(ctx); err != nil {
		log.Printf("[Reconcile] Error: %v", err)
		os.Exit(1)
	}
}

func do(ctx context.Context) error {
	fs, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("create firestore client: %w", err)
	}
	defer fs.Close()

	var reporter reconcile.Reporter
	if *auditDSN != "" {
		db, err := audit.Connect(*auditDSN)
		if err != nil {
			return fmt.Errorf("connect audit store: %w", err)
		}
		defer db.Close()
		reporter = audit.NewStore(db)
	}

	job := reconcile.NewJob(reconcile.NewFirestoreDirectory(fs), reporter, *dryRun)

	runID := uuid.NewString()
	result, err := job.Run(ctx, runID)
	if err != nil {
		return err
	}

	verb := "repaired"
	if *dryRun {
		verb = "found"
	}
	log.Printf("[Reconcile] Done: run=%s users=%d %s=%d", runID, result.UsersScanned, verb, len(result.Discrepancies))
	return nil
}
