package ir

import (
	"fmt"
	"strings"
)

// Level identifies the depth of an address in the repository tree.
type Level int

const (
	LevelInvalid Level = iota
	LevelRepository
	LevelCollection
	LevelEntry
	LevelAttribute
)

func (l Level) String() string {
	switch l {
	case LevelRepository:
		return "repository"
	case LevelCollection:
		return "collection"
	case LevelEntry:
		return "entry"
	case LevelAttribute:
		return "attribute"
	default:
		return "invalid"
	}
}

// Address locates an entity in the repository → collection → entry →
// attribute tree. Set fields must form a prefix: an entry address has a
// repository and a collection, never an attribute.
type Address struct {
	Repository string `json:"repository"`
	Collection string `json:"collection,omitempty"`
	Entry      string `json:"entry,omitempty"`
	Attribute  string `json:"attribute,omitempty"`
}

// RepositoryAddress returns the address of a repository.
func RepositoryAddress(repo string) Address {
	return Address{Repository: repo}
}

// CollectionAddress returns the address of a collection.
func CollectionAddress(repo, collection string) Address {
	return Address{Repository: repo, Collection: collection}
}

// EntryAddress returns the address of an entry.
func EntryAddress(repo, collection, entry string) Address {
	return Address{Repository: repo, Collection: collection, Entry: entry}
}

// AttributeAddress returns the address of an attribute.
func AttributeAddress(repo, collection, entry, attribute string) Address {
	return Address{Repository: repo, Collection: collection, Entry: entry, Attribute: attribute}
}

// Level returns the depth of the address, or LevelInvalid if the set
// fields do not form a prefix.
func (a Address) Level() Level {
	parts := a.parts()
	depth := 0
	for _, p := range parts {
		if p == "" {
			break
		}
		depth++
	}
	for _, p := range parts[depth:] {
		if p != "" {
			return LevelInvalid
		}
	}
	return Level(depth)
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Parent returns the address one level up. A repository has no parent.
func (a Address) Parent() (Address, bool) {
	switch a.Level() {
	case LevelAttribute:
		return EntryAddress(a.Repository, a.Collection, a.Entry), true
	case LevelEntry:
		return CollectionAddress(a.Repository, a.Collection), true
	case LevelCollection:
		return RepositoryAddress(a.Repository), true
	default:
		return Address{}, false
	}
}

// Contains reports whether other equals a or lies below it.
func (a Address) Contains(other Address) bool {
	level := a.Level()
	if level == LevelInvalid || other.Level() < level {
		return false
	}
	mine, theirs := a.parts(), other.parts()
	for i := 0; i < int(level); i++ {
		if mine[i] != theirs[i] {
			return false
		}
	}
	return true
}

// Chain returns the containment chain from a up to its repository,
// starting with a itself.
func (a Address) Chain() []Address {
	if a.Level() == LevelInvalid {
		return nil
	}
	chain := []Address{a}
	for cur := a; ; {
		parent, ok := cur.Parent()
		if !ok {
			return chain
		}
		chain = append(chain, parent)
		cur = parent
	}
}

// String renders the address as slash-separated segments.
func (a Address) String() string {
	parts := a.parts()
	return strings.Join(parts[:max(int(a.Level()), 0)], "/")
}

func (a Address) parts() []string {
	return []string{a.Repository, a.Collection, a.Entry, a.Attribute}
}

// ParseAddress is the inverse of Address.String.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("parse address: empty address")
	}
	segs := strings.Split(s, "/")
	if len(segs) > 4 {
		return Address{}, fmt.Errorf("parse address %q: too many segments", s)
	}
	for i, seg := range segs {
		if seg == "" {
			return Address{}, fmt.Errorf("parse address %q: empty segment %d", s, i)
		}
	}
	var a Address
	fields := []*string{&a.Repository, &a.Collection, &a.Entry, &a.Attribute}
	for i, seg := range segs {
		*fields[i] = seg
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Use only in tests or with constant input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
