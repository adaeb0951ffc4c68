package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressLevel(t *testing.T) {
	tests := []struct {
		name  string
		addr  Address
		level Level
	}{
		{"zero", Address{}, LevelInvalid},
		{"repository", RepositoryAddress("r"), LevelRepository},
		{"collection", CollectionAddress("r", "c"), LevelCollection},
		{"entry", EntryAddress("r", "c", "e"), LevelEntry},
		{"attribute", AttributeAddress("r", "c", "e", "a"), LevelAttribute},
		{"gap", Address{Repository: "r", Entry: "e"}, LevelInvalid},
		{"no repository", Address{Collection: "c"}, LevelInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, tt.addr.Level())
		})
	}
}

func TestAddressContains(t *testing.T) {
	coll := CollectionAddress("r", "c")

	assert.True(t, coll.Contains(coll), "address contains itself")
	assert.True(t, coll.Contains(EntryAddress("r", "c", "e")))
	assert.True(t, coll.Contains(AttributeAddress("r", "c", "e", "a")))
	assert.False(t, coll.Contains(RepositoryAddress("r")), "parent is not contained")
	assert.False(t, coll.Contains(EntryAddress("r", "other", "e")))
	assert.False(t, coll.Contains(EntryAddress("x", "c", "e")))
	assert.False(t, Address{}.Contains(coll))
}

func TestAddressChain(t *testing.T) {
	attr := AttributeAddress("r", "c", "e", "a")

	assert.Equal(t, []Address{
		attr,
		EntryAddress("r", "c", "e"),
		CollectionAddress("r", "c"),
		RepositoryAddress("r"),
	}, attr.Chain())
	assert.Equal(t, []Address{RepositoryAddress("r")}, RepositoryAddress("r").Chain())
	assert.Nil(t, Address{}.Chain())
}

func TestAddressParent(t *testing.T) {
	parent, ok := EntryAddress("r", "c", "e").Parent()
	require.True(t, ok)
	assert.Equal(t, CollectionAddress("r", "c"), parent)

	_, ok = RepositoryAddress("r").Parent()
	assert.False(t, ok)
}

func TestAddressStringRoundTrip(t *testing.T) {
	for _, s := range []string{"r", "r/c", "r/c/e", "r/c/e/a"} {
		t.Run(s, func(t *testing.T) {
			a, err := ParseAddress(s)
			require.NoError(t, err)
			assert.Equal(t, s, a.String())
		})
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, s := range []string{"", "r//e", "r/c/e/a/x", "/r"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseAddress(s)
			assert.Error(t, err)
		})
	}
}
