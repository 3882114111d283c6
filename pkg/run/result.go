package run

import "log"

// Endpoint statuses reported in the run summary.
const (
	StatusSuccess        = "success"
	StatusFailed         = "failed"
	StatusNotImplemented = "not_implemented"
)

// Result is the per-endpoint outcome of one pipeline run. It lives only for
// the duration of the process.
type Result struct {
	RunID    string
	Endpoint string
	Mode     string
	Status   string

	TasksAttempted    int
	TasksSucceeded    int
	TasksFailed       int
	PartitionsWritten int
	RecordsLoaded     int

	// Errors holds the first few task/group errors; counts carry the rest.
	Errors []string
}

// ExitCode maps run results to a process exit status. Partial success still
// exits zero: re-running the same selectors is safe, so a partially loaded
// backfill is progress, not failure.
func ExitCode(results []Result) int {
	anySuccess := false
	anyFailed := false
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			anySuccess = true
		case StatusFailed:
			anyFailed = true
		}
	}
	if anyFailed && !anySuccess {
		return 1
	}
	return 0
}

// LogSummary prints the end-of-run report in the same shape for every mode.
func LogSummary(results []Result) {
	totalRecords := 0
	failedCount := 0
	modeCounts := map[string]int{}

	for _, r := range results {
		totalRecords += r.RecordsLoaded
		if r.Status == StatusFailed {
			failedCount++
		}
		modeCounts[r.Mode]++
	}

	log.Println("[Pipeline] ============================================")
	log.Println("[Pipeline] Run Summary")
	log.Printf("[Pipeline] Endpoints processed: %d", len(results))
	log.Printf("[Pipeline] Endpoints failed: %d", failedCount)
	log.Printf("[Pipeline] Total records loaded: %d", totalRecords)
	for mode, count := range modeCounts {
		log.Printf("[Pipeline]   %s: %d endpoint(s)", mode, count)
	}

	for _, r := range results {
		marker := "[OK]"
		if r.Status == StatusFailed {
			marker = "[FAIL]"
		}
		log.Printf("[Pipeline] %s %s (%s): %d records, %d/%d tasks, %d partition(s)",
			marker, r.Endpoint, r.Mode, r.RecordsLoaded, r.TasksSucceeded, r.TasksAttempted, r.PartitionsWritten)
		for _, e := range r.Errors {
			log.Printf("[Pipeline]     error: %s", e)
		}
	}
	log.Println("[Pipeline] ============================================")
}
