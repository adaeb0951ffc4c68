package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandUsesExplicitActor(t *testing.T) {
	alice := Actor{ID: "alice", Credential: "secret"}
	bob := Actor{ID: "bob"}

	c1 := NewCommand(alice, KindChange, testAttr, WithValue(IRString("x")))
	c2 := NewCommand(bob, KindChange, testAttr, WithSafeRevision(4))

	assert.Equal(t, "alice", c1.Actor)
	assert.Equal(t, IntentForced, c1.Intent)
	assert.Equal(t, "bob", c2.Actor)
	assert.Equal(t, IntentSafe, c2.Intent)
	assert.Equal(t, int64(4), c2.Revision)
}

func TestCommandIRRoundTrip(t *testing.T) {
	actor := Actor{ID: "alice"}
	cmd := NewTransactionCommand(actor, testColl,
		NewCommand(actor, KindAdd, testEntry, WithSafeRevision(3), WithID("c1")),
		NewCommand(actor, KindChange, testAttr, WithValue(IRString("Alice")), WithID("c2")),
	)
	cmd.ID = "txn-1"

	decoded, err := CommandFromIR(cmd.ToIR())
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}

func TestCommandFromIRUnknownIntent(t *testing.T) {
	_, err := CommandFromIR(IRObject{
		"kind":   IRString("add"),
		"target": IRString("r/c"),
		"intent": IRString("maybe"),
	})
	assert.Error(t, err)
}

func TestCredentialNotSerialized(t *testing.T) {
	cmd := NewCommand(Actor{ID: "alice", Credential: "secret"}, KindRemove, testEntry)
	data, err := MarshalCanonical(cmd.ToIR())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}
