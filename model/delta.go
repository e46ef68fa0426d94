package model

// Delta is a set-valued field update: elements to add and elements to
// remove, applied against the previously stored value instead of
// overwriting it.
type Delta struct {
	Added   []string `json:"added,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0
}

// Apply merges the delta into previous by set union and difference. An
// element both added and deleted in the same delta is deleted: removals win.
// Newly added elements come first, then the surviving previous elements, in
// their original relative order and with duplicates dropped.
func (d Delta) Apply(previous []string) []string {
	deleted := make(map[string]struct{}, len(d.Deleted))
	for _, v := range d.Deleted {
		deleted[v] = struct{}{}
	}

	seen := make(map[string]struct{}, len(d.Added)+len(previous))
	out := make([]string, 0, len(d.Added)+len(previous))

	appendUnique := func(v string) {
		if _, gone := deleted[v]; gone {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, v := range d.Added {
		appendUnique(v)
	}
	for _, v := range previous {
		appendUnique(v)
	}

	return out
}
