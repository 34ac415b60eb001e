package landcover

import (
	"strings"

	"github.com/pkg/errors"
)

// Group is a semantic tag used to detect critical changes.
type Group string

// The three groups that drive critical-change detection.
const (
	GroupForest Group = "forest"
	GroupUrban  Group = "urban"
	GroupWater  Group = "water"
)

// Groups lists every known group in a stable order.
var Groups = []Group{GroupForest, GroupUrban, GroupWater}

// MaxLabels is the largest label set a class map can hold. Class indices
// are shifted by one and stored in 8-bit rasters during resizing.
const MaxLabels = 254

// groupKeywords drives InferGroups. Keys are lower-case substrings.
var groupKeywords = map[Group][]string{
	GroupForest: {"forest"},
	GroupUrban:  {"urban", "residential", "industrial"},
	GroupWater:  {"water", "river", "lake"},
}

// Label is one land-cover class.
type Label struct {
	// Name is the presentation name, e.g. "Forest".
	Name string `json:"name"`

	// Groups are the critical-change groups the class belongs to.
	Groups []Group `json:"groups,omitempty"`

	// Prototype is a representative "#RRGGBB" color used by SpectralModel.
	Prototype string `json:"prototype,omitempty"`
}

// LabelSet is an ordered, immutable list of labels. A label's position is
// its class index.
type LabelSet struct {
	labels  []Label
	index   map[string]int
	members map[Group][]bool
}

// NewLabelSet validates labels and builds a LabelSet.
//
// Group tags must be known. A set must have between 2 and MaxLabels labels
// with unique, non-empty names.
func NewLabelSet(labels []Label) (*LabelSet, error) {
	if len(labels) < 2 {
		return nil, errors.Wrapf(ErrInvalidLabelSet, "need at least 2 labels, got %d", len(labels))
	}
	if len(labels) > MaxLabels {
		return nil, errors.Wrapf(ErrInvalidLabelSet, "at most %d labels supported, got %d", MaxLabels, len(labels))
	}

	ls := &LabelSet{
		labels:  make([]Label, len(labels)),
		index:   make(map[string]int, len(labels)),
		members: make(map[Group][]bool, len(Groups)),
	}
	for _, g := range Groups {
		ls.members[g] = make([]bool, len(labels))
	}

	for i, l := range labels {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, errors.Wrapf(ErrInvalidLabelSet, "label %d has an empty name", i)
		}
		key := strings.ToLower(name)
		if _, dup := ls.index[key]; dup {
			return nil, errors.Wrapf(ErrInvalidLabelSet, "duplicate label %q", name)
		}
		ls.index[key] = i

		groups := make([]Group, 0, len(l.Groups))
		for _, g := range l.Groups {
			g = Group(strings.ToLower(string(g)))
			m, ok := ls.members[g]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidLabelSet, "label %q: unknown group %q", name, g)
			}
			if !m[i] {
				m[i] = true
				groups = append(groups, g)
			}
		}
		ls.labels[i] = Label{Name: name, Groups: groups, Prototype: l.Prototype}
	}
	return ls, nil
}

// InferGroups fills in groups for labels that declare none, matching the
// lower-cased name against the group keywords. A label whose name matches
// more than one group is rejected as ambiguous; declare its groups
// explicitly instead.
func InferGroups(labels []Label) ([]Label, error) {
	out := make([]Label, len(labels))
	for i, l := range labels {
		out[i] = l
		if len(l.Groups) > 0 {
			continue
		}
		name := strings.ToLower(l.Name)
		var matched []Group
		for _, g := range Groups {
			for _, kw := range groupKeywords[g] {
				if strings.Contains(name, kw) {
					matched = append(matched, g)
					break
				}
			}
		}
		if len(matched) > 1 {
			return nil, errors.Wrapf(ErrInvalidLabelSet,
				"label %q matches groups %v; declare its groups explicitly", l.Name, matched)
		}
		out[i].Groups = matched
	}
	return out, nil
}

// DefaultLabels returns the EuroSAT classes with their group tags and
// color prototypes.
func DefaultLabels() []Label {
	return []Label{
		{Name: "AnnualCrop", Prototype: "#B5A66B"},
		{Name: "Forest", Groups: []Group{GroupForest}, Prototype: "#1F4D2B"},
		{Name: "HerbaceousVegetation", Prototype: "#7E9A4F"},
		{Name: "Highway", Prototype: "#8C8C8C"},
		{Name: "Industrial", Groups: []Group{GroupUrban}, Prototype: "#B0B7BF"},
		{Name: "Pasture", Prototype: "#9DBF5A"},
		{Name: "PermanentCrop", Prototype: "#A3884E"},
		{Name: "Residential", Groups: []Group{GroupUrban}, Prototype: "#C98F72"},
		{Name: "River", Groups: []Group{GroupWater}, Prototype: "#3D6E8F"},
		{Name: "SeaLake", Groups: []Group{GroupWater}, Prototype: "#123A66"},
	}
}

// DefaultLabelSet returns the LabelSet built from DefaultLabels.
func DefaultLabelSet() *LabelSet {
	ls, err := NewLabelSet(DefaultLabels())
	if err != nil {
		panic(err)
	}
	return ls
}

// Len returns the number of labels.
func (ls *LabelSet) Len() int { return len(ls.labels) }

// Name returns the name of class i.
func (ls *LabelSet) Name(i int) string { return ls.labels[i].Name }

// Label returns a copy of class i.
func (ls *LabelSet) Label(i int) Label {
	l := ls.labels[i]
	l.Groups = append([]Group(nil), l.Groups...)
	return l
}

// Labels returns a copy of every label in index order.
func (ls *LabelSet) Labels() []Label {
	out := make([]Label, len(ls.labels))
	for i := range ls.labels {
		out[i] = ls.Label(i)
	}
	return out
}

// Names returns the label names in index order.
func (ls *LabelSet) Names() []string {
	names := make([]string, len(ls.labels))
	for i, l := range ls.labels {
		names[i] = l.Name
	}
	return names
}

// Index returns the class index for a name, case-insensitively.
func (ls *LabelSet) Index(name string) (int, bool) {
	i, ok := ls.index[strings.ToLower(strings.TrimSpace(name))]
	return i, ok
}

// InGroup reports whether class i belongs to group g. Out-of-range
// indices, including the unclassified sentinel, belong to no group.
func (ls *LabelSet) InGroup(i int, g Group) bool {
	m := ls.members[g]
	return i >= 0 && i < len(m) && m[i]
}
