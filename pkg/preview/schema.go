package preview

// Schema names the game-state keys the builder reads and writes.
type Schema struct {
	Character string // top-level character record
	Equipment string // equipment record inside the character
	Inventory string // top-level inventory list

	ItemID       string
	ItemName     string
	ItemQuantity string
	ItemType     string
	ItemWeight   string
	ItemEquipped string // bool flag set while the item is worn
	ItemSlot     string // slot tag recorded on a worn item

	// DefaultSlot is used when neither the intent, the item's slot tag nor
	// its type names a slot.
	DefaultSlot string
	// TypeSlots maps an item type to the slot it is worn in.
	TypeSlots map[string]string
}

// DefaultSchema returns the key names used by the narrator's state schema.
func DefaultSchema() Schema {
	return Schema{
		Character: "角色",
		Equipment: "装备",
		Inventory: "背包",

		ItemID:       "id",
		ItemName:     "名称",
		ItemQuantity: "数量",
		ItemType:     "类型",
		ItemWeight:   "重量",
		ItemEquipped: "已装备",
		ItemSlot:     "装备槽位",

		DefaultSlot: "主手",
		TypeSlots: map[string]string{
			"武器": "主手",
			"盾牌": "副手",
			"副手": "副手",
			"头盔": "头部",
			"头部": "头部",
			"护甲": "身体",
			"防具": "身体",
			"鞋子": "脚部",
			"饰品": "饰品",
		},
	}
}
