package action

// MaxForks bounds the fork table, per spec.md section 5 ("max forks = 16").
const MaxForks = 16

// Fork is a conditional action substitution: at trigger press, Default or
// Alternative is chosen once, based on whether the modifiers currently
// held match Condition. Release mirrors whichever branch fired.
type Fork struct {
	Trigger     Action
	Default     Action
	Alternative Action
	Condition   ModifierMask
}

// Resolve picks Default or Alternative given the modifiers held at the
// moment the trigger was pressed.
func (f Fork) Resolve(heldMods ModifierMask) Action {
	if heldMods.Has(f.Condition) {
		return f.Alternative
	}
	return f.Default
}
