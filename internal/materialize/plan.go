package materialize

import (
	"os"
	"path"
)

// Entry is one planned destination path.
type Entry struct {
	// Path is slash separated and relative to the destination root.
	Path string
	Dir  bool
	Mode os.FileMode
	Data []byte
	// Verbatim is set for files copied without rendering.
	Verbatim bool
	// Source is the path the entry came from, for logging.
	Source string
}

// Plan is an ordered set of entries keyed by destination path.
type Plan struct {
	entries []Entry
	index   map[string]int
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{index: make(map[string]int)}
}

// Add records e. A later file for the same path replaces the earlier one in
// place; directories are only recorded once.
func (p *Plan) Add(e Entry) {
	e.Path = path.Clean(e.Path)
	if i, ok := p.index[e.Path]; ok {
		if e.Dir && p.entries[i].Dir {
			return
		}
		p.entries[i] = e
		return
	}
	p.index[e.Path] = len(p.entries)
	p.entries = append(p.entries, e)
}

// Entries returns the entries in the order they were first added, which is
// the order they are committed in.
func (p *Plan) Entries() []Entry {
	return p.entries
}

// Files returns the number of planned files.
func (p *Plan) Files() int {
	n := 0
	for _, e := range p.entries {
		if !e.Dir {
			n++
		}
	}
	return n
}

// Lookup returns the entry planned for path.
func (p *Plan) Lookup(rel string) (Entry, bool) {
	i, ok := p.index[path.Clean(rel)]
	if !ok {
		return Entry{}, false
	}
	return p.entries[i], true
}
