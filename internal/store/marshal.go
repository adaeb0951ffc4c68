package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/treesync/internal/ir"
)

// marshalEvent converts an event to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalEvent(ev ir.Event) (string, error) {
	data, err := ir.MarshalCanonical(ev.ToIR())
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// marshalCommand converts a command to canonical JSON TEXT.
// A nil command (playback entry) is stored as NULL.
func marshalCommand(cmd *ir.Command) (sql.NullString, error) {
	if cmd == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(cmd.ToIR())
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal command: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalEvent(data string) (ir.Event, error) {
	obj, err := unmarshalObject(data)
	if err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	ev, err := ir.EventFromIR(obj)
	if err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

func unmarshalCommand(data sql.NullString) (*ir.Command, error) {
	if !data.Valid {
		return nil, nil
	}
	obj, err := unmarshalObject(data.String)
	if err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	cmd, err := ir.CommandFromIR(obj)
	if err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	return &cmd, nil
}

func unmarshalObject(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}
