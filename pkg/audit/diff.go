package audit

import "reflect"

// Diff compares two snapshots of a record restricted to the whitelisted
// fields and returns one Change per field whose value differs. Comparison is
// structural (reflect.DeepEqual), so nested values and nil/zero distinctions
// behave the way the snapshots encode them. Fields absent from both snapshots
// never produce a change; a field present in only one side does.
func Diff(before, after map[string]interface{}, fields []string) []Change {
	var changes []Change
	for _, field := range fields {
		b, inBefore := before[field]
		a, inAfter := after[field]
		if !inBefore && !inAfter {
			continue
		}
		if inBefore && inAfter && reflect.DeepEqual(b, a) {
			continue
		}
		changes = append(changes, Change{Field: field, Before: b, After: a})
	}
	return changes
}
