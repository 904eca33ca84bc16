package domain

// MaxDisplayedRules caps the picker size.
const MaxDisplayedRules = 3

// DisplayedSubset is the ordered set of rule IDs surfaced in the picker.
type DisplayedSubset struct {
	ids []string
}

// NewDisplayedSubset builds a subset from ids, dropping duplicates and
// anything past MaxDisplayedRules.
func NewDisplayedSubset(ids ...string) DisplayedSubset {
	var d DisplayedSubset
	for _, id := range ids {
		if id == "" || d.Contains(id) || len(d.ids) >= MaxDisplayedRules {
			continue
		}
		d.ids = append(d.ids, id)
	}
	return d
}

// IDs returns a copy of the ordered ids.
func (d DisplayedSubset) IDs() []string {
	return append([]string(nil), d.ids...)
}

// Len returns the number of displayed rules.
func (d DisplayedSubset) Len() int {
	return len(d.ids)
}

// Contains reports whether id is displayed.
func (d DisplayedSubset) Contains(id string) bool {
	for _, v := range d.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle removes id when present, otherwise appends it.
// It returns whether id is displayed afterwards.
func (d *DisplayedSubset) Toggle(id string) (bool, error) {
	if d.Remove(id) {
		return false, nil
	}
	if len(d.ids) >= MaxDisplayedRules {
		return false, ErrDisplayFull
	}
	d.ids = append(d.ids, id)
	return true, nil
}

// Remove drops id and reports whether it was present.
func (d *DisplayedSubset) Remove(id string) bool {
	for i, v := range d.ids {
		if v == id {
			d.ids = append(d.ids[:i:i], d.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Retain keeps only the ids for which exists returns true.
func (d *DisplayedSubset) Retain(exists func(id string) bool) {
	kept := d.ids[:0:0]
	for _, id := range d.ids {
		if exists(id) {
			kept = append(kept, id)
		}
	}
	d.ids = kept
}
