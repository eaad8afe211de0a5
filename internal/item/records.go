package item

// Record is one keyed item in an ordered batch.
type Record struct {
	Key  string
	Item Item
}

// Records is an insertion-ordered sequence of keyed items, the unit handed to
// the batch store. JSON objects do not preserve order, so order is carried
// explicitly here until records land in a segment file.
type Records []Record

// Add appends a record, preserving insertion order.
func (r *Records) Add(key string, it Item) {
	*r = append(*r, Record{Key: key, Item: it})
}

// Keys returns the record keys in insertion order.
func (r Records) Keys() []string {
	keys := make([]string, len(r))
	for i, rec := range r {
		keys[i] = rec.Key
	}

	return keys
}
