package markdown

// Metadata is a string-keyed map that remembers the order keys were first
// inserted, matching the order front-matter lines appear in a page's source.
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata creates an empty Metadata map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]string)}
}

// Get returns the value stored under key and whether the key is present.
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key, appending the key to the insertion order if it
// is new.
func (m *Metadata) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key from the map.
func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of stored keys.
func (m *Metadata) Len() int {
	return len(m.values)
}
