package preview

import (
	"github.com/jwebster45206/story-state/pkg/state"
)

// items returns the inventory records by position. Non-record elements
// come back as nil so indices stay aligned with the list.
func (b *Builder) items(gs state.GameState) []map[string]any {
	list, ok := state.AsList(gs[b.schema.Inventory])
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(list))
	for i, v := range list {
		out[i], _ = state.AsRecord(v)
	}
	return out
}

// FindItem locates an inventory item by id, falling back to display name.
// Ids are unique; names may collide, in which case the first match wins.
func (b *Builder) FindItem(gs state.GameState, id, name string) (int, map[string]any, bool) {
	items := b.items(gs)
	if id != "" {
		for i, item := range items {
			if item != nil && idString(item[b.schema.ItemID]) == id {
				return i, item, true
			}
		}
	}
	if name != "" {
		for i, item := range items {
			if n, ok := item[b.schema.ItemName].(string); ok && n == name {
				return i, item, true
			}
		}
	}
	return -1, nil, false
}

// findBySlot returns the item currently worn in slot. A leftover slot tag on
// an item that is not equipped does not count.
func (b *Builder) findBySlot(gs state.GameState, slot string) (int, map[string]any, bool) {
	for i, item := range b.items(gs) {
		if tag, ok := item[b.schema.ItemSlot].(string); ok && tag == slot && isTrue(item[b.schema.ItemEquipped]) {
			return i, item, true
		}
	}
	return -1, nil, false
}

// InventoryWeight sums weight × quantity over the inventory. Items without
// a quantity count once; items without a weight count as zero.
func (b *Builder) InventoryWeight(gs state.GameState) float64 {
	var total float64
	for _, item := range b.items(gs) {
		w, ok := state.ToFloat(item[b.schema.ItemWeight])
		if !ok {
			continue
		}
		qty, ok := state.ToFloat(item[b.schema.ItemQuantity])
		if !ok {
			qty = 1
		}
		total += w * qty
	}
	return total
}

// Equipped returns the character's equipment record, or nil.
func (b *Builder) Equipped(gs state.GameState) map[string]any {
	char, ok := state.AsRecord(gs[b.schema.Character])
	if !ok {
		return nil
	}
	eq, _ := state.AsRecord(char[b.schema.Equipment])
	return eq
}
