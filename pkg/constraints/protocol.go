package constraints

// Operation identifies the kind of mutation an intent carries.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Sync status values carried on stream messages.
const (
	StatusQueued = "queued"
	StatusSynced = "synced"
	StatusFailed = "failed"
)

// LocalIDPrefix marks ids issued on the device before the central store has
// acknowledged the record. Server-issued ids never carry it.
const LocalIDPrefix = "local-"
