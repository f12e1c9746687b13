// Package topics discovers the processing stages available in a workspace.
//
// A topic exists iff an executable handler for it sits in the handlers
// directory; the file name without extension is the topic name. Discovery
// is lexicographic so worker startup order is deterministic.
package topics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrexodia/sjq"
)

// Registry enumerates and validates topics against the handlers directory.
type Registry struct {
	dir string
}

// NewRegistry creates a registry over the given handlers directory.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// List returns every available topic, sorted lexicographically.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("topics: read handlers dir %s: %w", r.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resolve validates an operator-supplied filter against the available
// topics. An empty filter means every topic in the workspace; an unknown
// name is a configuration error reported before any queue interaction.
func (r *Registry) Resolve(filter []string) ([]string, error) {
	available, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return available, nil
	}

	known := make(map[string]bool, len(available))
	for _, t := range available {
		known[t] = true
	}
	for _, t := range filter {
		if !known[t] {
			return nil, fmt.Errorf("%w: %s", sjq.ErrUnknownTopic, t)
		}
	}
	return filter, nil
}

// HandlerPath returns the path of the handler artifact for topic, or
// ErrHandlerNotFound when no artifact exists. With several matching
// artifacts the lexicographically first wins.
func (r *Registry) HandlerPath(topic string) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("topics: read handlers dir %s: %w", r.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) == topic {
			return filepath.Join(r.dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s", sjq.ErrHandlerNotFound, topic)
}
