package state

import (
	"bytes"
	"fmt"
	"maps"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/pkg/statepath"
)

// Top-level subsystems of a game state tree.
const (
	KeyCharacter = "角色"
	KeyInventory = "背包"
	KeySocial    = "社交"
	KeyWorld     = "世界"
	KeyQuests    = "任务"
)

// RootName is the root token narration commands prefix every address with.
const RootName = "gameState"

// GameState is the canonical state tree of one game session.
// Records are map[string]any, ordered lists are []any, and numbers are
// int64 or float64 after decoding.
type GameState map[string]any

// New returns an empty state with every subsystem present.
func New() GameState {
	return GameState{
		KeyCharacter: map[string]any{"装备": map[string]any{}},
		KeyInventory: []any{},
		KeySocial:    []any{},
		KeyWorld:     map[string]any{},
		KeyQuests:    []any{},
	}
}

// Clone returns a deep copy of the tree.
func (gs GameState) Clone() GameState {
	if gs == nil {
		return nil
	}
	return GameState(DeepClone(map[string]any(gs)).(map[string]any))
}

// ShallowClone copies only the root record. Children are shared.
func (gs GameState) ShallowClone() GameState {
	if gs == nil {
		return nil
	}
	return maps.Clone(gs)
}

// Lookup returns the value at path, following fields through records and
// indices through lists.
func (gs GameState) Lookup(path statepath.Path) (any, bool) {
	var cur any = map[string]any(gs)
	for _, step := range path {
		if step.IsIndex() {
			list, ok := AsList(cur)
			if !ok || step.Index >= len(list) {
				return nil, false
			}
			cur = list[step.Index]
			continue
		}
		rec, ok := AsRecord(cur)
		if !ok {
			return nil, false
		}
		v, exists := rec[step.Field]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Get parses address and looks it up. A leading "gameState" token is ignored.
func (gs GameState) Get(address string) (any, error) {
	p, err := statepath.Parse(address)
	if err != nil {
		return nil, err
	}
	v, ok := gs.Lookup(p.TrimRoot(RootName))
	if !ok {
		return nil, fmt.Errorf("no value at %s", p)
	}
	return v, nil
}

// UnmarshalJSON decodes the tree keeping integers as int64.
func (gs *GameState) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode game state: %w", err)
	}
	if raw == nil {
		*gs = nil
		return nil
	}
	*gs = GameState(NormalizeNumbers(raw).(map[string]any))
	return nil
}

// Snapshot is the unit of persistence: one session's canonical tree plus
// bookkeeping.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Turn      int       `json:"turn"`
	UpdatedAt time.Time `json:"updated_at"`
	State     GameState `json:"state"`
}
