package item

import "fmt"

// Different reports whether two snapshots of the same item differ in any field
// other than the excluded ones. A field present on only one side counts as a
// difference. Values are compared by textual representation so that numeric
// type coercion between fetches does not register as a change.
func Different(old, updated Item, exclude ...string) bool {
	excluded := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		excluded[k] = struct{}{}
	}

	for key, oldValue := range old {
		if _, skip := excluded[key]; skip {
			continue
		}

		newValue, ok := updated[key]
		if !ok {
			return true
		}

		if render(oldValue) != render(newValue) {
			return true
		}
	}

	for key := range updated {
		if _, skip := excluded[key]; skip {
			continue
		}

		if _, ok := old[key]; !ok {
			return true
		}
	}

	return false
}

// render produces the comparison form of a value. fmt prints maps in sorted
// key order, so two decodings of the same JSON value render identically.
func render(v any) string {
	return fmt.Sprint(v)
}
