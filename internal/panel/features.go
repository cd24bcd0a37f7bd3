package panel

// FeatureSet is an ordered, immutable collection of feature names
type FeatureSet struct {
	names []string
}

// NewFeatureSet creates a feature set; duplicate names keep their first position
func NewFeatureSet(names ...string) FeatureSet {
	seen := make(map[string]bool, len(names))
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		kept = append(kept, n)
	}
	return FeatureSet{names: kept}
}

// Names returns a copy of the names in order
func (f FeatureSet) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Len returns the number of features
func (f FeatureSet) Len() int {
	return len(f.names)
}

// Index returns the position of name, or -1
func (f FeatureSet) Index(name string) int {
	for i, n := range f.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is in the set
func (f FeatureSet) Contains(name string) bool {
	return f.Index(name) >= 0
}

// Without returns a new set with the given names removed, order preserved
func (f FeatureSet) Without(names ...string) FeatureSet {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := make([]string, 0, len(f.names))
	for _, n := range f.names {
		if !drop[n] {
			kept = append(kept, n)
		}
	}
	return FeatureSet{names: kept}
}
