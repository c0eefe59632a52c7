// Package memory reads and appends to the markdown memory store: a
// directory of files owned by an external sync service. The reader only
// observes; the only mutations this package performs are line appends and
// the listener's task insert, both guarded by a sidecar file lock.
package memory

// TaskCategory groups open tasks under one section heading of the tasks
// file, in file order.
type TaskCategory struct {
	Name  string
	Tasks []string
}

// PersonNote is one person file from the people directory, truncated to the
// configured character limit.
type PersonNote struct {
	Name    string // display name derived from the file slug
	Slug    string // file name without extension
	Content string
}

// ContextFile is an auxiliary context file read verbatim.
type ContextFile struct {
	Name    string
	Content string
}

// Snapshot is the fully parsed, in-memory view of the store at one run.
// It is immutable once built and has no persisted identity.
type Snapshot struct {
	TaskCategories []TaskCategory
	InboxItems     []string // capped, most recent last
	People         []PersonNote
	Context        []ContextFile
}

// TaskCount returns the total number of open tasks across categories.
func (s *Snapshot) TaskCount() int {
	n := 0
	for _, c := range s.TaskCategories {
		n += len(c.Tasks)
	}
	return n
}
