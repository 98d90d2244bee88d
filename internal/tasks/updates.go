package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Err     error  // Set when the step failed and was skipped
}

// Operation phase enumeration
type Phase int

const (
	AddGames Phase = iota
	RemoveGames
	UpdateGames
	FetchExpansions
	ItemFailed
)

func (p Phase) String() string {
	switch p {
	case AddGames:
		return "add_games"
	case RemoveGames:
		return "remove_games"
	case UpdateGames:
		return "update_games"
	case FetchExpansions:
		return "fetch_expansions"
	case ItemFailed:
		return "item_failed"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func addingGameUpdate(step, total int, name string, bggID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddGames,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %s (%d)", step, total, name, bggID),
	}
}

func removingGameUpdate(step, total int, name string, bggID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveGames,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing %s (%d)", step, total, name, bggID),
	}
}

func updatingGameUpdate(step, total int, name string, bggID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdateGames,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Updating %s (%d)", step, total, name, bggID),
	}
}

func expansionUpdate(step, total int, name string, bggID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchExpansions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Expansion %s (%d)", step, total, name, bggID),
	}
}

func itemFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ItemFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", name, err),
		Err:     err,
	}
}
