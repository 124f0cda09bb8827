package capture

// Profile describes which events open and complete an interaction of one kind.
type Profile struct {
	Kind InteractionKind

	// StartEvents open a capture.
	StartEvents []EventType

	// CompletionEvent picks the event that ends the synchronous handling of
	// an interaction on target.
	CompletionEvent func(target Target) EventType
}

// PointerProfile starts on pointerup and completes on click, or on change for
// form controls.
func PointerProfile() Profile {
	return Profile{
		Kind:        KindPointer,
		StartEvents: []EventType{EventPointerUp},
		CompletionEvent: func(target Target) EventType {
			if target != nil && target.FormControl() {
				return EventChange
			}
			return EventClick
		},
	}
}

// KeyboardProfile starts on keydown and completes on input for form controls,
// keyup otherwise.
func KeyboardProfile() Profile {
	return Profile{
		Kind:        KindKeyboard,
		StartEvents: []EventType{EventKeyDown},
		CompletionEvent: func(target Target) EventType {
			if target != nil && target.FormControl() {
				return EventInput
			}
			return EventKeyUp
		},
	}
}

// ProfileFor returns the built-in profile of kind.
func ProfileFor(kind InteractionKind) Profile {
	if kind == KindKeyboard {
		return KeyboardProfile()
	}
	return PointerProfile()
}
