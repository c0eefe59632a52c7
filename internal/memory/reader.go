package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Action-owner markers the tasks file uses inline. Normalized so the
// generation step sees a stable token instead of markdown emphasis.
var actionMarkers = strings.NewReplacer(
	"_(their action)_", "[THEIR ACTION]",
	"_(my action)_", "[MY ACTION]",
)

// ReadLister is what the Reader needs from the store: file reads plus
// markdown enumeration for the people directory.
type ReadLister interface {
	Read(path string) (string, error)
	ListMarkdown(dir string) ([]string, error)
}

// ContextSpec names one auxiliary context file in the manifest.
type ContextSpec struct {
	Name string // section label, e.g. "Company Context"
	Path string // relative path inside the store
}

// ReaderConfig is the manifest plus the caps the reader enforces.
type ReaderConfig struct {
	TasksFile    string
	InboxFile    string
	PeopleDir    string
	ContextFiles []ContextSpec

	InboxMaxItems   int    // default 10
	PersonNoteLimit int    // default 400
	Truncation      string // "chars" or "paragraph"
}

// Reader builds a Snapshot from the store. It owns no data and performs no
// writes; missing files yield empty inputs, never errors.
type Reader struct {
	store ReadLister
	cfg   ReaderConfig
}

// NewReader creates a reader over the store.
func NewReader(store ReadLister, cfg ReaderConfig) *Reader {
	if cfg.InboxMaxItems <= 0 {
		cfg.InboxMaxItems = 10
	}
	if cfg.PersonNoteLimit <= 0 {
		cfg.PersonNoteLimit = 400
	}
	return &Reader{store: store, cfg: cfg}
}

// Load parses the store into a Snapshot. Two calls against an unchanged
// store return structurally equal snapshots.
func (r *Reader) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	tasksMD, err := r.readOptional(r.cfg.TasksFile)
	if err != nil {
		return nil, err
	}
	snap.TaskCategories = parseOpenTasks(tasksMD)

	inboxMD, err := r.readOptional(r.cfg.InboxFile)
	if err != nil {
		return nil, err
	}
	snap.InboxItems = parseInbox(inboxMD, r.cfg.InboxMaxItems)

	people, err := r.loadPeople()
	if err != nil {
		return nil, err
	}
	snap.People = people

	for _, spec := range r.cfg.ContextFiles {
		content, err := r.readOptional(spec.Path)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		// Auxiliary context is carried verbatim, no truncation.
		snap.Context = append(snap.Context, ContextFile{Name: spec.Name, Content: content})
	}

	return snap, nil
}

// readOptional treats a missing file as empty input.
func (r *Reader) readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := r.store.Read(path)
	if errors.Is(err, ErrMissingFile) {
		slog.Debug("memory file missing, treated as empty", "path", path)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

func (r *Reader) loadPeople() ([]PersonNote, error) {
	if r.cfg.PeopleDir == "" {
		return nil, nil
	}
	names, err := r.store.ListMarkdown(r.cfg.PeopleDir)
	if err != nil {
		return nil, err
	}
	var people []PersonNote
	for _, name := range names {
		content, err := r.readOptional(filepath.Join(r.cfg.PeopleDir, name))
		if err != nil {
			return nil, err
		}
		slug := strings.TrimSuffix(name, ".md")
		people = append(people, PersonNote{
			Name:    displayName(slug),
			Slug:    slug,
			Content: truncateNote(content, r.cfg.PersonNoteLimit, r.cfg.Truncation),
		})
	}
	return people, nil
}

// parseOpenTasks splits the tasks file into "## " sections and collects
// unchecked list items. A section whose heading is "Done" (any case) is
// excluded entirely; sections after it are still evaluated. Checked items
// are done regardless of section. Lines that fit no recognized shape are
// skipped so one malformed section never poisons the rest of the file.
func parseOpenTasks(tasksMD string) []TaskCategory {
	const defaultCategory = "General"

	var (
		order   []string
		current = defaultCategory
		inDone  = false
	)
	categories := map[string][]string{}

	for _, line := range strings.Split(tasksMD, "\n") {
		if strings.HasPrefix(line, "## ") {
			current = strings.TrimSpace(strings.TrimLeft(line, "# "))
			if current == "" {
				current = defaultCategory
			}
			inDone = strings.EqualFold(current, "done")
			continue
		}
		if inDone {
			continue
		}

		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "- [ ]"):
			task := strings.TrimSpace(strings.TrimPrefix(s, "- [ ]"))
			if task == "" {
				continue
			}
			task = actionMarkers.Replace(task)
			if _, seen := categories[current]; !seen {
				order = append(order, current)
			}
			categories[current] = append(categories[current], task)
		case strings.HasPrefix(s, "- [x]"), strings.HasPrefix(s, "- [X]"):
			// Completed inline; stays out of the snapshot.
		case strings.HasPrefix(s, "- ["):
			slog.Debug("skipping malformed task line", "line", s)
		}
	}

	out := make([]TaskCategory, 0, len(order))
	for _, name := range order {
		out = append(out, TaskCategory{Name: name, Tasks: categories[name]})
	}
	return out
}

// parseInbox collects non-heading, non-blank lines and keeps the last max
// items. End of file is most recent; recency is file order, not parsed
// dates.
func parseInbox(inboxMD string, max int) []string {
	var items []string
	for _, line := range strings.Split(inboxMD, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		items = append(items, s)
	}
	if len(items) > max {
		items = items[len(items)-max:]
	}
	return items
}

// displayName converts a file slug like "jane-doe" into "Jane Doe".
func displayName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return slug
	}
	return strings.Join(words, " ")
}

// Describe summarizes a snapshot for logging.
func (s *Snapshot) Describe() string {
	return fmt.Sprintf("%d tasks, %d inbox items, %d people, %d context files",
		s.TaskCount(), len(s.InboxItems), len(s.People), len(s.Context))
}
