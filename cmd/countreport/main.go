package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zzzrenn/HeadCountGuard/internal/report"
	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

var (
	dbPath  = flag.String("db", "headcountguard.db", "Path to the sqlite database")
	runID   = flag.String("run", "", "Run id to report on (defaults to the most recent run)")
	outPath = flag.String("out", "report.html", "Output HTML file")
)

func main() {
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	run, err := selectRun(st, *runID)
	if err != nil {
		log.Fatalf("Failed to select run: %v", err)
	}

	samples, err := st.Samples().ListByRun(run.ID)
	if err != nil {
		log.Fatalf("Failed to load samples: %v", err)
	}

	events, err := st.Events().ListByRun(run.ID)
	if err != nil {
		log.Fatalf("Failed to load events: %v", err)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()

	if err := report.Occupancy(run, samples, events, out); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	fmt.Printf("Wrote report for run %s (%d samples, %d events) to %s\n",
		run.ID, len(samples), len(events), *outPath)
}

// selectRun returns the requested run, or the most recent one when no id
// is given.
func selectRun(st *store.Store, id string) (*store.Run, error) {
	if id != "" {
		return st.Runs().GetByID(id)
	}

	runs, err := st.Runs().List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.New("store has no runs")
	}

	// List returns runs newest first.
	return runs[0], nil
}
