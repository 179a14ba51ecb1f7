package catalog

import "github.com/victor/stormcatalog/internal/models"

// State is the phase a Service is in
type State int32

const (
	Idle State = iota
	Scanning
	Diffing
	Applying
	CoolingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Diffing:
		return "diffing"
	case Applying:
		return "applying"
	case CoolingDown:
		return "cooling down"
	default:
		return "unknown"
	}
}

// EventType identifies a change reported during a run
type EventType int

const (
	FolderCreated EventType = iota
	AssetCreated
	AssetDeleted
	BatchCompleted
	FolderCompleted
	CatalogCompleted
	CatalogSkipped
)

func (t EventType) String() string {
	return [...]string{
		"folder created",
		"asset created",
		"asset deleted",
		"batch completed",
		"folder completed",
		"catalog completed",
		"catalog skipped",
	}[t]
}

// Event is delivered to the Run callback, always from the goroutine calling Run
type Event struct {
	Type     EventType
	Folder   *models.Folder
	Asset    *models.Asset
	FileName string

	// Batch is the 1-based index of the batch within its folder
	Batch     int
	BatchSize int

	Result *Result
}

// Callback receives run events
type Callback func(Event)
