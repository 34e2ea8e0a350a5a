// Package preview projects pending player actions onto canonical game state
// to produce what the player should see while the narrator has not yet
// confirmed them.
package preview

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/queue"
	"github.com/jwebster45206/story-state/pkg/state"
	"github.com/jwebster45206/story-state/pkg/statepath"
)

// Builder derives preview states. It holds no state between calls.
type Builder struct {
	schema  Schema
	logger  *slog.Logger
	applier *command.Applier
}

// NewBuilder creates a builder using DefaultSchema.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		schema:  DefaultSchema(),
		logger:  logger,
		applier: command.NewApplier(logger),
	}
}

// WithSchema overrides the key names. Returns the Builder for method chaining.
func (b *Builder) WithSchema(s Schema) *Builder {
	b.schema = s
	return b
}

// Project applies entries, in order, to a copy of canonical and returns it.
//
// canonical is never written to. Only containers on a written path are
// copied; untouched branches are shared with canonical. The result is never
// the same map as canonical, even with no entries.
func (b *Builder) Project(canonical state.GameState, entries []queue.Entry) state.GameState {
	out := canonical.ShallowClone()
	if out == nil {
		out = state.GameState{}
	}
	for _, e := range entries {
		switch {
		case e.Intent != nil:
			out = b.projectIntent(out, *e.Intent)
		case len(e.Commands) > 0:
			out = b.projectCommands(out, e)
		}
	}
	return out
}

// ProjectCommands previews an in-flight command batch that has been sent for
// confirmation but not yet applied to canonical state.
func (b *Builder) ProjectCommands(canonical state.GameState, cmds []command.Command) state.GameState {
	return b.Project(canonical, []queue.Entry{{Label: "in-flight", Commands: cmds}})
}

func (b *Builder) projectIntent(gs state.GameState, in queue.Intent) state.GameState {
	switch in.Kind {
	case queue.IntentEquip:
		return b.equip(gs, in)
	case queue.IntentUnequip:
		return b.unequip(gs, in)
	case queue.IntentUse:
		return b.use(gs, in)
	default:
		b.debug("Ignoring unknown intent", "kind", in.Kind)
		return gs
	}
}

func (b *Builder) projectCommands(gs state.GameState, e queue.Entry) state.GameState {
	result, err := b.applier.Apply(gs, e.Commands)
	if err != nil {
		b.debug("Skipping entry with malformed command", "id", e.ID, "label", e.Label, "error", err)
		return gs
	}
	return result.State
}

func (b *Builder) equip(gs state.GameState, in queue.Intent) state.GameState {
	s := b.schema
	idx, item, found := b.FindItem(gs, in.ItemID, in.ItemName)
	if !found {
		// Nothing to tag; still show the slot if we were told which one.
		if in.Slot != "" && in.ItemName != "" {
			next, _ := b.tryWrite(b.ensureEquipment(gs), command.ActionSet, b.slotPath(in.Slot), in.ItemName)
			return next
		}
		b.debug("Equip target not in inventory", "item_id", in.ItemID, "item_name", in.ItemName)
		return gs
	}

	slot := b.resolveSlot(in, item)

	// The slot goes first: an item is never flagged as worn somewhere the
	// character cannot show it.
	next, ok := b.tryWrite(b.ensureEquipment(gs), command.ActionSet, b.slotPath(slot), b.displayName(item, in))
	if !ok {
		return gs
	}
	gs = next

	// Moving between slots empties the one it came from.
	if old, _ := item[s.ItemSlot].(string); old != "" && old != slot && isTrue(item[s.ItemEquipped]) {
		gs = b.write(gs, command.ActionSet, b.slotPath(old), nil)
	}

	// Whatever was worn in that slot comes off.
	for i, other := range b.items(gs) {
		if i == idx {
			continue
		}
		if tag, _ := other[s.ItemSlot].(string); tag == slot && isTrue(other[s.ItemEquipped]) {
			gs = b.clearItemFlags(gs, i, other)
		}
	}

	itemPath := b.itemPath(idx)
	gs = b.write(gs, command.ActionSet, itemPath.Append(statepath.Field(s.ItemEquipped)), true)
	return b.write(gs, command.ActionSet, itemPath.Append(statepath.Field(s.ItemSlot)), slot)
}

// ensureEquipment gives the character an empty equipment record when it has
// none. A character that is not a record is left alone.
func (b *Builder) ensureEquipment(gs state.GameState) state.GameState {
	s := b.schema
	raw, exists := gs[s.Character]
	if !exists || raw == nil {
		return b.write(gs, command.ActionSet, statepath.Path{statepath.Field(s.Character)},
			map[string]any{s.Equipment: map[string]any{}})
	}
	char, ok := state.AsRecord(raw)
	if !ok {
		return gs
	}
	if eq, present := char[s.Equipment]; present && eq != nil {
		return gs
	}
	return b.write(gs, command.ActionSet,
		statepath.Path{statepath.Field(s.Character), statepath.Field(s.Equipment)}, map[string]any{})
}

func (b *Builder) unequip(gs state.GameState, in queue.Intent) state.GameState {
	s := b.schema
	slot := in.Slot

	idx, item, found := b.FindItem(gs, in.ItemID, in.ItemName)
	if !found && slot != "" {
		idx, item, found = b.findBySlot(gs, slot)
	}
	if found && slot == "" {
		slot, _ = item[s.ItemSlot].(string)
	}

	if slot != "" {
		gs = b.write(gs, command.ActionSet, b.slotPath(slot), nil)
	}
	if found {
		gs = b.clearItemFlags(gs, idx, item)
	}
	return gs
}

func (b *Builder) use(gs state.GameState, in queue.Intent) state.GameState {
	idx, item, found := b.FindItem(gs, in.ItemID, in.ItemName)
	if !found {
		b.debug("Use target not in inventory", "item_id", in.ItemID, "item_name", in.ItemName)
		return gs
	}

	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	current, ok := state.ToFloat(item[b.schema.ItemQuantity])
	if !ok {
		// Items without a quantity are singletons.
		current = 1
	}

	if current-float64(qty) <= 0 {
		return b.write(gs, command.ActionDelete, b.itemPath(idx), nil)
	}
	return b.write(gs, command.ActionAdd, b.itemPath(idx).Append(statepath.Field(b.schema.ItemQuantity)), -qty)
}

func (b *Builder) clearItemFlags(gs state.GameState, idx int, item map[string]any) state.GameState {
	s := b.schema
	itemPath := b.itemPath(idx)
	gs = b.write(gs, command.ActionSet, itemPath.Append(statepath.Field(s.ItemEquipped)), false)
	if _, tagged := item[s.ItemSlot]; tagged {
		gs = b.write(gs, command.ActionDelete, itemPath.Append(statepath.Field(s.ItemSlot)), nil)
	}
	return gs
}

// resolveSlot picks the slot an item is equipped into: the intent's slot,
// then the item's own slot tag, then its type, then DefaultSlot.
func (b *Builder) resolveSlot(in queue.Intent, item map[string]any) string {
	s := b.schema
	if in.Slot != "" {
		return in.Slot
	}
	if tag, ok := item[s.ItemSlot].(string); ok && tag != "" {
		return tag
	}
	if typ, ok := item[s.ItemType].(string); ok {
		if slot, ok := s.TypeSlots[typ]; ok {
			return slot
		}
	}
	return s.DefaultSlot
}

func (b *Builder) displayName(item map[string]any, in queue.Intent) any {
	if name, ok := item[b.schema.ItemName].(string); ok && name != "" {
		return name
	}
	if in.ItemName != "" {
		return in.ItemName
	}
	return item[b.schema.ItemID]
}

// write applies one action and returns the new state. A failed write leaves
// gs untouched; the preview shows whatever partial update its inputs allow.
func (b *Builder) write(gs state.GameState, action command.Action, p statepath.Path, value any) state.GameState {
	next, _ := b.tryWrite(gs, action, p, value)
	return next
}

func (b *Builder) tryWrite(gs state.GameState, action command.Action, p statepath.Path, value any) (state.GameState, bool) {
	next, err := command.ApplyPath(gs, action, p, value)
	if err != nil {
		b.debug("Preview write skipped", "action", action, "path", p.String(), "error", err)
		return gs, false
	}
	return next, true
}

func (b *Builder) itemPath(idx int) statepath.Path {
	return statepath.Path{statepath.Field(b.schema.Inventory), statepath.Index(idx)}
}

func (b *Builder) slotPath(slot string) statepath.Path {
	return statepath.Path{
		statepath.Field(b.schema.Character),
		statepath.Field(b.schema.Equipment),
		statepath.Field(slot),
	}
}

func (b *Builder) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func isTrue(v any) bool {
	t, ok := v.(bool)
	return ok && t
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
