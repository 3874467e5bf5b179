package models

import (
	"encoding/json"
	"strings"
)

// SystemActorID is the persisted form of the automated actor.
const SystemActorID = "SYSTEM"

// Actor identifies who performed an action: an operator or the system.
// The zero value is an unset actor.
type Actor struct {
	system bool
	id     string
}

// System returns the automated actor.
func System() Actor {
	return Actor{system: true}
}

// Operator returns an operator actor.
func Operator(id string) Actor {
	return Actor{id: id}
}

// ParseActor maps a persisted actor string back to an Actor.
// "SYSTEM" maps to System; empty maps to the unset actor.
func ParseActor(s string) Actor {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Actor{}
	case strings.EqualFold(s, SystemActorID):
		return System()
	}
	return Operator(s)
}

// IsSystem reports whether the actor is the automated actor.
func (a Actor) IsSystem() bool { return a.system }

// IsZero reports whether the actor is unset.
func (a Actor) IsZero() bool { return !a.system && a.id == "" }

// OperatorID returns the operator id, or empty for System.
func (a Actor) OperatorID() string { return a.id }

// String returns the persisted form.
func (a Actor) String() string {
	if a.system {
		return SystemActorID
	}
	return a.id
}

// MarshalJSON encodes the actor as its persisted string, or null when unset.
func (a Actor) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a persisted actor string.
func (a *Actor) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Actor{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseActor(s)
	return nil
}
