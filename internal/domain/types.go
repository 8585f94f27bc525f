package domain

// Metadata is an unstructured payload container. The service never inspects
// its contents; it is carried through to the launcher and the event feed
// unmodified.
type Metadata map[string]any

func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	copy := make(Metadata, len(m))
	for k, v := range m {
		copy[k] = v
	}
	return copy
}
