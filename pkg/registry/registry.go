package registry

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/types"
)

const (
	// NodeLabel selects attributes by node
	NodeLabel = "__node__"
	// NameLabel selects attributes by attribute name
	NameLabel = "__name__"
)

// ErrUnknownAttribute is returned for IDs that were never registered
var ErrUnknownAttribute = errors.New("unknown attribute")

// AttributeID is the fingerprint of an attribute's identity
type AttributeID uint64

// String formats the ID as fixed-width hex
func (id AttributeID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParseID parses the output of AttributeID.String
func ParseID(s string) (AttributeID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute id %q: %w", s, err)
	}
	return AttributeID(v), nil
}

// Entry is a registered attribute and the index holding its samples
type Entry struct {
	ID        AttributeID
	Attribute types.Attribute
	Index     *temporal.Index[float64]
}

// Registry maps attribute metadata to one temporal index per attribute
type Registry struct {
	mu      sync.RWMutex
	entries map[AttributeID]*Entry
	// Inverted index: label name -> label value -> attribute IDs
	labelIndex map[string]map[string][]AttributeID
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries:    make(map[AttributeID]*Entry),
		labelIndex: make(map[string]map[string][]AttributeID),
	}
}

// Register adds attr and returns its ID and index. Registering the same
// identity twice returns the existing entry.
func (r *Registry) Register(attr types.Attribute) (*Entry, error) {
	if attr.Node == "" || attr.Name == "" {
		return nil, fmt.Errorf("attribute requires node and name, got %q/%q", attr.Node, attr.Name)
	}
	if attr.Type == "" {
		attr.Type = types.ValueNumeric
	}

	id := Fingerprint(attr)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.entries[id]; exists {
		return e, nil
	}

	e := &Entry{
		ID:        id,
		Attribute: attr,
		Index:     temporal.NewIndex[float64](),
	}
	r.entries[id] = e

	r.indexLabel(NodeLabel, attr.Node, id)
	r.indexLabel(NameLabel, attr.Name, id)
	for name, value := range attr.Labels {
		r.indexLabel(name, value, id)
	}

	return e, nil
}

func (r *Registry) indexLabel(name, value string, id AttributeID) {
	if r.labelIndex[name] == nil {
		r.labelIndex[name] = make(map[string][]AttributeID)
	}
	r.labelIndex[name][value] = append(r.labelIndex[name][value], id)
}

// Lookup returns the entry for id
func (r *Registry) Lookup(id AttributeID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("attribute %s: %w", id, ErrUnknownAttribute)
	}
	return e, nil
}

// Find returns the IDs matching every selector, sorted. An empty selector
// set matches everything.
func (r *Registry) Find(selectors map[string]string) []AttributeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(selectors) == 0 {
		result := make([]AttributeID, 0, len(r.entries))
		for id := range r.entries {
			result = append(result, id)
		}
		sortIDs(result)
		return result
	}

	var result []AttributeID
	first := true

	for name, value := range selectors {
		ids, ok := r.labelIndex[name][value]
		if !ok {
			return nil
		}

		if first {
			result = append([]AttributeID(nil), ids...)
			first = false
		} else {
			result = intersect(result, ids)
		}

		if len(result) == 0 {
			return nil
		}
	}

	sortIDs(result)
	return result
}

// All returns every entry ordered by node then name
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attribute.Node != out[j].Attribute.Node {
			return out[i].Attribute.Node < out[j].Attribute.Node
		}
		return out[i].Attribute.Name < out[j].Attribute.Name
	})
	return out
}

// Len returns the number of registered attributes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear forgets every attribute
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[AttributeID]*Entry)
	r.labelIndex = make(map[string]map[string][]AttributeID)
}

// Fingerprint hashes node, name and sorted labels into a stable ID
func Fingerprint(attr types.Attribute) AttributeID {
	keys := make([]string, 0, len(attr.Labels))
	for k := range attr.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := new(bytes.Buffer)
	buf.WriteString(attr.Node)
	buf.WriteByte(0)
	buf.WriteString(attr.Name)

	for _, k := range keys {
		buf.WriteByte(0) // Separator
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(attr.Labels[k])
	}

	return AttributeID(xxhash.Sum64(buf.Bytes()))
}

func sortIDs(ids []AttributeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// intersect finds common elements in two slices. b may be shared with the
// label index, so only a is sorted in place.
func intersect(a, b []AttributeID) []AttributeID {
	b = append([]AttributeID(nil), b...)
	sortIDs(a)
	sortIDs(b)

	result := make([]AttributeID, 0)
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
