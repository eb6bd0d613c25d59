package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var keyStripRegexp = regexp.MustCompile(`[\s_]+`)

// NormalizeKey lowercases text and strips all whitespace and underscores,
// producing the lookup key used on both sides of the category index so that
// "Bus Shelter", "bus_shelter" and "BUSSHELTER" all collide.
func NormalizeKey(text string) string {
	return keyStripRegexp.ReplaceAllString(strings.ToLower(text), "")
}

// CategoryResolver maps free-text format labels to the classification UUIDs
// the downstream marketplace expects. The override table is a JSON object
// {format_type: category_uuid} persisted on disk; the in-memory index is
// keyed by NormalizeKey and rebuilt on every registration (hot reload).
//
// Reads vastly outnumber writes: a run resolves every row, an operator
// registers a handful of overrides. An RWMutex covers both.
type CategoryResolver struct {
	path string

	mu         sync.RWMutex
	entries    map[string]string
	normalized map[string]uuid.UUID
}

// NewCategoryResolver loads the override table from path. A missing file is
// an empty table, not an error.
func NewCategoryResolver(path string) (*CategoryResolver, error) {
	r := &CategoryResolver{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the persisted table and rebuilds the normalized index.
func (r *CategoryResolver) Reload() error {
	entries := make(map[string]string)

	data, err := os.ReadFile(r.path)
	switch {
	case os.IsNotExist(err):
		// first run, nothing registered yet
	case err != nil:
		return fmt.Errorf("failed to read category map %s: %w", r.path, err)
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse category map %s: %w", r.path, err)
		}
	}

	normalized := make(map[string]uuid.UUID, len(entries))
	for name, raw := range entries {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("category map entry %q has invalid uuid %q: %w", name, raw, err)
		}
		normalized[NormalizeKey(name)] = id
	}

	r.mu.Lock()
	r.entries = entries
	r.normalized = normalized
	r.mu.Unlock()
	return nil
}

// Resolve looks up the category for a format label via the normalized index.
// The caller collects unmapped labels for operator registration; an unmapped
// label is not an error.
func (r *CategoryResolver) Resolve(formatType string) (uuid.UUID, bool) {
	key := NormalizeKey(formatType)
	if key == "" {
		return uuid.Nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.normalized[key]
	return id, ok
}

// Register appends an override, rewrites the persisted table and hot-reloads
// the index.
func (r *CategoryResolver) Register(name string, id uuid.UUID) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("category name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]string)
	}
	r.entries[name] = id.String()

	data, err := json.MarshalIndent(r.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode category map: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write category map %s: %w", r.path, err)
	}

	if r.normalized == nil {
		r.normalized = make(map[string]uuid.UUID)
	}
	r.normalized[NormalizeKey(name)] = id
	return nil
}

// Size returns the number of registered categories.
func (r *CategoryResolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Canonical lighting enum values.
const (
	LightingDigital  = "Digital"
	LightingBacklit  = "BL"
	LightingFrontlit = "FL"
	LightingUnlit    = "NL"
)

// MapLightingType collapses free-text lighting descriptions onto the
// canonical enum. Digital is checked first: vendor strings can carry several
// tokens ("LED back lit") and digital wins.
func MapLightingType(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(s, "digital"):
		return LightingDigital
	case strings.Contains(s, "back") || s == "bl":
		return LightingBacklit
	case strings.Contains(s, "front") || s == "fl":
		return LightingFrontlit
	default:
		return LightingUnlit
	}
}
