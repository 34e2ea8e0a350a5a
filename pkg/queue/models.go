package queue

import (
	"time"

	"github.com/jwebster45206/story-state/pkg/command"
)

// IntentKind identifies a local player action the preview knows how to project.
type IntentKind string

const (
	IntentEquip   IntentKind = "EQUIP"
	IntentUnequip IntentKind = "UNEQUIP"
	IntentUse     IntentKind = "USE"
)

// Intent is the domain-level description of a pending player action.
type Intent struct {
	Kind     IntentKind `json:"kind"`
	ItemID   string     `json:"itemId,omitempty"`
	ItemName string     `json:"itemName,omitempty"`
	Slot     string     `json:"slot,omitempty"`
	Quantity int        `json:"quantity,omitempty"` // USE only; 0 means 1
}

// Entry is one pending, not yet canonical player action.
type Entry struct {
	ID    string `json:"id"`
	Label string `json:"label"` // shown in the pending-actions list

	// Intent drives the preview. Entries without one are previewed by
	// applying Commands directly.
	Intent *Intent `json:"intent,omitempty"`

	// Commands are what the narrator is asked to confirm for this entry.
	Commands []command.Command `json:"commands,omitempty"`

	// DedupeKey makes a later entry with the same key replace this one in place.
	DedupeKey string `json:"dedupeKey,omitempty"`

	// Reversal undoes any eager side effect the caller made when queueing.
	// It runs when the entry is withdrawn, never when it is retired.
	Reversal func() `json:"-"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}
