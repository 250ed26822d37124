// Package attribute defines the candidate browser-fingerprint attributes
// and the sets built out of them, the base vocabulary every measure kernel
// and exploration algorithm operates on.
package attribute

import (
	"hash/fnv"
	"sort"

	"github.com/tandriamil/BrFAST/internal/engineerr"
)

// Attribute is a single candidate fingerprinting attribute: a stable
// numeric id paired with the column name it was collected under. Equality
// and ordering are by ID alone; two attributes with the same ID are
// considered the same attribute regardless of name.
type Attribute struct {
	ID   uint32
	Name string
}

// Less orders attributes by ID, the order used throughout this package and
// by every algorithm that needs a deterministic iteration order.
func (a Attribute) Less(other Attribute) bool {
	return a.ID < other.ID
}

// AttributeSet is an ordered collection of attributes, kept sorted by ID.
// The zero value is an empty, usable set.
type AttributeSet struct {
	byID  map[uint32]Attribute
	order []uint32 // sorted attribute ids, kept in sync with byID
}

// NewAttributeSet builds a set from the given attributes. Duplicate ids
// among the arguments are an error, consistent with Add.
func NewAttributeSet(attrs ...Attribute) (AttributeSet, error) {
	s := AttributeSet{}
	for _, a := range attrs {
		if err := s.Add(a); err != nil {
			return AttributeSet{}, err
		}
	}
	return s, nil
}

// MustNewAttributeSet is NewAttributeSet for call sites (tests, fixtures)
// that know the arguments cannot collide.
func MustNewAttributeSet(attrs ...Attribute) AttributeSet {
	s, err := NewAttributeSet(attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *AttributeSet) ensure() {
	if s.byID == nil {
		s.byID = make(map[uint32]Attribute)
	}
}

// Add inserts an attribute into the set. Adding an id already present
// returns a DuplicateAttributeId error and leaves the set unchanged.
func (s *AttributeSet) Add(a Attribute) error {
	s.ensure()
	if _, exists := s.byID[a.ID]; exists {
		return engineerr.New(engineerr.DuplicateAttributeId,
			"attribute id %d already present in the set", a.ID)
	}
	s.byID[a.ID] = a
	idx := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= a.ID })
	s.order = append(s.order, 0)
	copy(s.order[idx+1:], s.order[idx:])
	s.order[idx] = a.ID
	return nil
}

// Remove deletes the attribute with the given id. A miss returns
// KeyNotFound.
func (s *AttributeSet) Remove(id uint32) error {
	s.ensure()
	if _, exists := s.byID[id]; !exists {
		return engineerr.New(engineerr.KeyNotFound, "no attribute with id %d in the set", id)
	}
	delete(s.byID, id)
	idx := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= id })
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	return nil
}

// Contains reports whether the set holds an attribute with the given id.
func (s AttributeSet) Contains(id uint32) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of attributes in the set.
func (s AttributeSet) Len() int {
	return len(s.order)
}

// ByID looks up an attribute by id. A miss returns KeyNotFound.
func (s AttributeSet) ByID(id uint32) (Attribute, error) {
	a, ok := s.byID[id]
	if !ok {
		return Attribute{}, engineerr.New(engineerr.KeyNotFound, "no attribute with id %d", id)
	}
	return a, nil
}

// ByName looks up an attribute by name. A miss returns KeyNotFound. Linear
// in the set size; sets in this engine are small (tens of attributes).
func (s AttributeSet) ByName(name string) (Attribute, error) {
	for _, id := range s.order {
		if a := s.byID[id]; a.Name == name {
			return a, nil
		}
	}
	return Attribute{}, engineerr.New(engineerr.KeyNotFound, "no attribute named %q", name)
}

// Attributes returns the set's attributes ordered by ID.
func (s AttributeSet) Attributes() []Attribute {
	out := make([]Attribute, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// IDs returns the set's attribute ids in ascending order.
func (s AttributeSet) IDs() []uint32 {
	out := make([]uint32, len(s.order))
	copy(out, s.order)
	return out
}

// Names returns the set's attribute names, ordered by attribute id.
func (s AttributeSet) Names() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Name)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s AttributeSet) Clone() AttributeSet {
	clone := AttributeSet{
		byID:  make(map[uint32]Attribute, len(s.byID)),
		order: make([]uint32, len(s.order)),
	}
	for k, v := range s.byID {
		clone.byID[k] = v
	}
	copy(clone.order, s.order)
	return clone
}

// WithAttribute returns a new set equal to s plus a, leaving s untouched.
// It is the immutable counterpart to Add, used by the exploration
// algorithms when expanding a node's children.
func (s AttributeSet) WithAttribute(a Attribute) (AttributeSet, error) {
	clone := s.Clone()
	if err := clone.Add(a); err != nil {
		return AttributeSet{}, err
	}
	return clone, nil
}

// IsSubsetOf reports whether every attribute of s is also in other.
func (s AttributeSet) IsSubsetOf(other AttributeSet) bool {
	for _, id := range s.order {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// IsSupersetOf reports whether s contains every attribute of other.
func (s AttributeSet) IsSupersetOf(other AttributeSet) bool {
	return other.IsSubsetOf(s)
}

// Equal reports whether s and other contain exactly the same attribute ids.
func (s AttributeSet) Equal(other AttributeSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	return s.IsSubsetOf(other)
}

// Hash returns an order-independent digest of the set's attribute ids,
// computed as FNV-1a over the sorted id sequence. Two sets with the same
// members hash identically regardless of insertion order.
func (s AttributeSet) Hash() uint64 {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, id := range s.order {
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
