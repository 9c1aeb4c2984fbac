// Package ledger persists the registry numbers emitted by earlier runs.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"kvksnapshot/lib/osutil"
)

// Set is a set of registry numbers, it never holds the empty string.
type Set map[string]struct{}

func NewSet(keys ...string) Set {
	s := Set{}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts the trimmed key, empty keys are ignored.
func (s Set) Add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

func (s Set) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Union returns a new set holding the keys of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the keys in ascending order.
func (s Set) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Read parses one key per line, blank lines are skipped.
func Read(r io.Reader) (Set, error) {
	set := Set{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		set.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Write writes the keys sorted, one per line.
func Write(w io.Writer, set Set) error {
	buffered := bufio.NewWriter(w)
	for _, k := range set.Sorted() {
		if _, err := buffered.WriteString(k + "\n"); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// Load reads the ledger at path, a missing file is an empty ledger.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer f.Close()

	set, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	return set, nil
}

// Persist replaces the ledger at path with the given set.
func Persist(path string, set Set) error {
	err := osutil.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return Write(w, set)
	})
	if err != nil {
		return fmt.Errorf("ledger: persist %s: %w", path, err)
	}
	return nil
}

// File is a ledger stored at a fixed path.
type File struct {
	Path string
}

func (f File) Load() (Set, error) {
	return Load(f.Path)
}

func (f File) Persist(set Set) error {
	return Persist(f.Path, set)
}
