package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandriamil/BrFAST/internal/engineerr"
)

func TestAttributeSetAddOrdersById(t *testing.T) {
	s := AttributeSet{}
	require.NoError(t, s.Add(Attribute{ID: 3, Name: "c"}))
	require.NoError(t, s.Add(Attribute{ID: 1, Name: "a"}))
	require.NoError(t, s.Add(Attribute{ID: 2, Name: "b"}))

	assert.Equal(t, []uint32{1, 2, 3}, s.IDs())
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
}

func TestAttributeSetAddDuplicateFails(t *testing.T) {
	s := AttributeSet{}
	require.NoError(t, s.Add(Attribute{ID: 1, Name: "a"}))

	err := s.Add(Attribute{ID: 1, Name: "a-again"})
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.DuplicateAttributeId))

	// the failed add must not have touched the set
	assert.Equal(t, 1, s.Len())
}

func TestAttributeSetRemoveMissingFails(t *testing.T) {
	s := AttributeSet{}
	err := s.Remove(42)
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))
}

func TestAttributeSetByNameAndById(t *testing.T) {
	s := MustNewAttributeSet(
		Attribute{ID: 1, Name: "user_agent"},
		Attribute{ID: 2, Name: "screen_resolution"},
	)

	a, err := s.ByName("screen_resolution")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), a.ID)

	_, err = s.ByName("missing")
	require.Error(t, err)
	assert.True(t, engineerr.Is(err, engineerr.KeyNotFound))

	a, err = s.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, "user_agent", a.Name)
}

func TestAttributeSetSubsetSuperset(t *testing.T) {
	full := MustNewAttributeSet(
		Attribute{ID: 1, Name: "a"},
		Attribute{ID: 2, Name: "b"},
		Attribute{ID: 3, Name: "c"},
	)
	partial := MustNewAttributeSet(
		Attribute{ID: 1, Name: "a"},
		Attribute{ID: 3, Name: "c"},
	)

	assert.True(t, partial.IsSubsetOf(full))
	assert.True(t, full.IsSupersetOf(partial))
	assert.False(t, full.IsSubsetOf(partial))
}

func TestAttributeSetHashIsOrderIndependent(t *testing.T) {
	a := MustNewAttributeSet(
		Attribute{ID: 1, Name: "a"},
		Attribute{ID: 2, Name: "b"},
	)
	b := AttributeSet{}
	require.NoError(t, b.Add(Attribute{ID: 2, Name: "b"}))
	require.NoError(t, b.Add(Attribute{ID: 1, Name: "a"}))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
}

func TestAttributeSetHashDiffersOnContent(t *testing.T) {
	a := MustNewAttributeSet(Attribute{ID: 1, Name: "a"})
	b := MustNewAttributeSet(Attribute{ID: 2, Name: "b"})
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestAttributeSetWithAttributeLeavesOriginalUntouched(t *testing.T) {
	base := MustNewAttributeSet(Attribute{ID: 1, Name: "a"})
	extended, err := base.WithAttribute(Attribute{ID: 2, Name: "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, extended.Len())
}

func TestAttributeSetClone(t *testing.T) {
	base := MustNewAttributeSet(Attribute{ID: 1, Name: "a"})
	clone := base.Clone()
	require.NoError(t, clone.Add(Attribute{ID: 2, Name: "b"}))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, clone.Len())
}
