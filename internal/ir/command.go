package ir

import "fmt"

// Intent says how a command treats concurrent changes.
type Intent int

const (
	// IntentForced applies regardless of the target's current revision.
	IntentForced Intent = iota
	// IntentSafe applies only if the target is still at Command.Revision.
	IntentSafe
)

func (i Intent) String() string {
	if i == IntentSafe {
		return "safe"
	}
	return "forced"
}

// Actor identifies who issues commands. It is passed explicitly to command
// construction so that concurrent sessions never share identity state.
type Actor struct {
	ID         string `json:"id"`
	Credential string `json:"-"`
}

// Command is a locally-issued intent to change the tree.
type Command struct {
	ID     string
	Kind   ChangeKind
	Target Address
	Intent Intent
	// Revision is the revision the client believed current. Only
	// meaningful for safe commands.
	Revision int64
	Value    IRValue
	Actor    string

	// Commands holds the members of a transaction command.
	Commands []Command
}

// CommandOption configures a command under construction.
type CommandOption func(*Command)

// WithSafeRevision makes the command safe against the given revision.
func WithSafeRevision(rev int64) CommandOption {
	return func(c *Command) {
		c.Intent = IntentSafe
		c.Revision = rev
	}
}

// WithValue sets the value an attribute command writes.
func WithValue(v IRValue) CommandOption {
	return func(c *Command) {
		c.Value = v
	}
}

// WithID sets an explicit command ID.
func WithID(id string) CommandOption {
	return func(c *Command) {
		c.ID = id
	}
}

// NewCommand builds a forced command on behalf of actor. Use
// WithSafeRevision to make it safe.
func NewCommand(actor Actor, kind ChangeKind, target Address, opts ...CommandOption) Command {
	c := Command{
		Kind:   kind,
		Target: target,
		Intent: IntentForced,
		Actor:  actor.ID,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewTransactionCommand groups commands that must apply together.
func NewTransactionCommand(actor Actor, target Address, members ...Command) Command {
	return Command{
		Kind:     KindTransaction,
		Target:   target,
		Intent:   IntentForced,
		Actor:    actor.ID,
		Commands: members,
	}
}

// ToIR converts the command to its persisted object form.
func (c Command) ToIR() IRObject {
	obj := IRObject{
		"kind":   IRString(c.Kind.String()),
		"target": IRString(c.Target.String()),
		"intent": IRString(c.Intent.String()),
	}
	if c.ID != "" {
		obj["id"] = IRString(c.ID)
	}
	if c.Intent == IntentSafe {
		obj["revision"] = IRInt(c.Revision)
	}
	if c.Actor != "" {
		obj["actor"] = IRString(c.Actor)
	}
	if !IsAbsent(c.Value) {
		obj["value"] = c.Value
	}
	if len(c.Commands) > 0 {
		members := make(IRArray, len(c.Commands))
		for i, m := range c.Commands {
			members[i] = m.ToIR()
		}
		obj["commands"] = members
	}
	return obj
}

// CommandFromIR parses the object form produced by ToIR.
func CommandFromIR(obj IRObject) (Command, error) {
	var c Command

	kind, err := stringField(obj, "kind", true)
	if err != nil {
		return Command{}, err
	}
	if c.Kind, err = ParseChangeKind(kind); err != nil {
		return Command{}, err
	}
	if c.Target, err = addressField(obj, "target"); err != nil {
		return Command{}, err
	}
	intent, err := stringField(obj, "intent", false)
	if err != nil {
		return Command{}, err
	}
	switch intent {
	case "", "forced":
		c.Intent = IntentForced
	case "safe":
		c.Intent = IntentSafe
	default:
		return Command{}, fmt.Errorf("unknown intent %q", intent)
	}
	if c.Revision, err = intField(obj, "revision"); err != nil {
		return Command{}, err
	}
	if c.ID, err = stringField(obj, "id", false); err != nil {
		return Command{}, err
	}
	if c.Actor, err = stringField(obj, "actor", false); err != nil {
		return Command{}, err
	}
	if v, ok := obj["value"]; ok && !IsAbsent(v) {
		c.Value = v
	}
	if raw, ok := obj["commands"]; ok {
		members, isArr := raw.(IRArray)
		if !isArr {
			return Command{}, fmt.Errorf("field %q: expected array, got %T", "commands", raw)
		}
		for i, m := range members {
			memberObj, isObj := m.(IRObject)
			if !isObj {
				return Command{}, fmt.Errorf("commands[%d]: expected object, got %T", i, m)
			}
			member, err := CommandFromIR(memberObj)
			if err != nil {
				return Command{}, fmt.Errorf("commands[%d]: %w", i, err)
			}
			c.Commands = append(c.Commands, member)
		}
	}
	return c, nil
}
