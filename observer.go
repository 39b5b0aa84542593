package observer

import "github.com/google/uuid"

// ID identifies an observer handle. It is assigned once when the handle is
// created and compared by value, so two handles with the same label are still
// distinct observers.
type ID uuid.UUID

// NilID is the zero ID. It is never returned by NewID.
var NilID ID

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID decodes the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, err
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText lets structured log handlers render the ID as a string.
func (id ID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// Observer is notified by a Publisher once per tick.
//
// Update takes no input and returns nothing. Its only observable effect is
// whatever the implementation emits; the publisher never inspects it.
type Observer interface {
	// ID returns the identity assigned at creation. It must not change over
	// the lifetime of the handle.
	ID() ID

	// Label is a human-readable name used in logs.
	Label() string

	// Update is called by the publisher on every tick.
	Update()
}

// Identity carries the ID and label of an observer. Embed it in concrete
// observers to satisfy the ID and Label methods.
type Identity struct {
	id    ID
	label string
}

// NewIdentity assigns a new ID to label.
func NewIdentity(label string) Identity {
	return Identity{id: NewID(), label: label}
}

func (i Identity) ID() ID { return i.id }

func (i Identity) Label() string { return i.label }

type funcObserver struct {
	Identity
	fn func()
}

func (o *funcObserver) Update() { o.fn() }

// NewObserver wraps fn as an Observer with a new identity.
func NewObserver(label string, fn func()) Observer {
	return &funcObserver{Identity: NewIdentity(label), fn: fn}
}
