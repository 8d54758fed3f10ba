package action

// MaxComboMembers bounds how many keys a single Combo can require, per the
// data model's "actions: set of KeyAction (<=4)".
const MaxComboMembers = 4

// MaxCombos bounds the combo list, per spec.md section 5 ("max combos = 8").
const MaxCombos = 8

// Combo is the static definition of a multi-key chord: press every member
// in Actions within the behavior config's combo timeout to emit Output as
// a single press, instead of the individual member reports.
type Combo struct {
	Actions [MaxComboMembers]Action
	Count   int // number of populated entries in Actions

	Output Action

	// HasLayer/Layer restrict the combo to firing only while Layer is the
	// topmost active layer; HasLayer false means unrestricted.
	HasLayer bool
	Layer    uint8
}

// IndexOf returns the member index of a matching Action within the combo,
// or -1 if a is not a member. Actions compare by Kind/Key/Mod/Layer only
// (combo members are always leaf Key or Modifier actions in practice).
func (c Combo) IndexOf(a Action) int {
	for i := 0; i < c.Count; i++ {
		m := c.Actions[i]
		if m.Kind == a.Kind && m.Key == a.Key && m.Mod == a.Mod && m.Layer == a.Layer {
			return i
		}
	}
	return -1
}
