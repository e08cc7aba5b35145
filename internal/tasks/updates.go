package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchList Phase = iota
	FetchDetails
	WriteExport
)

func (p Phase) String() string {
	switch p {
	case FetchList:
		return "fetch_list"
	case FetchDetails:
		return "fetch_details"
	case WriteExport:
		return "write_export"
	default:
		return ""
	}
}

func fetchingListUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Step:    0,
		Total:   1,
		Message: "Fetching your anime list...",
	}
}

func fetchedListUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d entries", count),
	}
}

func detailsFetchedUpdate(step, total int, res DetailResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetails,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Name),
		Data:    res.Details,
	}
}

func detailsFailedUpdate(step, total int, res DetailResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetails,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Name, res.Error),
	}
}

func writingExportUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Writing %s...", path),
	}
}

func exportWrittenUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Export written to %s", path),
		Data:    path,
	}
}
