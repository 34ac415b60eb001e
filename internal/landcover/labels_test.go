package landcover

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestNewLabelSet(t *testing.T) {
	ls, err := NewLabelSet([]Label{
		{Name: "Forest", Groups: []Group{GroupForest}},
		{Name: " Urban ", Groups: []Group{"URBAN"}},
		{Name: "Crop"},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ls.Len(), test.ShouldEqual, 3)
	test.That(t, ls.Names(), test.ShouldResemble, []string{"Forest", "Urban", "Crop"})

	i, ok := ls.Index("urban")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, i, test.ShouldEqual, 1)

	test.That(t, ls.InGroup(0, GroupForest), test.ShouldBeTrue)
	test.That(t, ls.InGroup(1, GroupUrban), test.ShouldBeTrue)
	test.That(t, ls.InGroup(2, GroupUrban), test.ShouldBeFalse)
	test.That(t, ls.InGroup(-1, GroupForest), test.ShouldBeFalse)
	test.That(t, ls.InGroup(3, GroupForest), test.ShouldBeFalse)
}

func TestNewLabelSetRejects(t *testing.T) {
	tests := []struct {
		name   string
		labels []Label
	}{
		{"too few", []Label{{Name: "Forest"}}},
		{"empty name", []Label{{Name: "Forest"}, {Name: "  "}}},
		{"duplicate", []Label{{Name: "Forest"}, {Name: "forest"}}},
		{"unknown group", []Label{{Name: "Forest"}, {Name: "Ice", Groups: []Group{"glacier"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLabelSet(tt.labels)
			test.That(t, errors.Is(err, ErrInvalidLabelSet), test.ShouldBeTrue)
		})
	}

	many := make([]Label, MaxLabels+1)
	for i := range many {
		many[i] = Label{Name: string(rune('a'+i%26)) + string(rune('A'+i/26))}
	}
	_, err := NewLabelSet(many)
	test.That(t, errors.Is(err, ErrInvalidLabelSet), test.ShouldBeTrue)
}

func TestLabelSetCopies(t *testing.T) {
	ls := DefaultLabelSet()
	l := ls.Label(1)
	l.Groups[0] = GroupWater
	test.That(t, ls.InGroup(1, GroupForest), test.ShouldBeTrue)
	test.That(t, ls.Label(1).Groups, test.ShouldResemble, []Group{GroupForest})
}

func TestInferGroups(t *testing.T) {
	labels, err := InferGroups([]Label{
		{Name: "Mixed Forest"},
		{Name: "Residential"},
		{Name: "Industrial"},
		{Name: "SeaLake"},
		{Name: "River"},
		{Name: "Pasture"},
		{Name: "Wetland", Groups: []Group{GroupWater, GroupForest}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, labels[0].Groups, test.ShouldResemble, []Group{GroupForest})
	test.That(t, labels[1].Groups, test.ShouldResemble, []Group{GroupUrban})
	test.That(t, labels[2].Groups, test.ShouldResemble, []Group{GroupUrban})
	test.That(t, labels[3].Groups, test.ShouldResemble, []Group{GroupWater})
	test.That(t, labels[4].Groups, test.ShouldResemble, []Group{GroupWater})
	test.That(t, labels[5].Groups, test.ShouldBeEmpty)
	test.That(t, labels[6].Groups, test.ShouldResemble, []Group{GroupWater, GroupForest})

	ls, err := NewLabelSet(labels)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ls.InGroup(6, GroupWater), test.ShouldBeTrue)
	test.That(t, ls.InGroup(6, GroupForest), test.ShouldBeTrue)
}

func TestInferGroupsAmbiguous(t *testing.T) {
	_, err := InferGroups([]Label{{Name: "Forest"}, {Name: "Riverside Residential"}})
	test.That(t, errors.Is(err, ErrInvalidLabelSet), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Riverside Residential")
}

func TestDefaultLabelSet(t *testing.T) {
	ls := DefaultLabelSet()
	test.That(t, ls.Len(), test.ShouldEqual, 10)

	counts := map[Group]int{}
	for i := 0; i < ls.Len(); i++ {
		for _, g := range Groups {
			if ls.InGroup(i, g) {
				counts[g]++
			}
		}
	}
	test.That(t, counts[GroupForest], test.ShouldEqual, 1)
	test.That(t, counts[GroupUrban], test.ShouldEqual, 2)
	test.That(t, counts[GroupWater], test.ShouldEqual, 2)

	// Explicit groups agree with name inference for the default vocabulary.
	stripped := DefaultLabels()
	for i := range stripped {
		stripped[i].Groups = nil
	}
	inferred, err := InferGroups(stripped)
	test.That(t, err, test.ShouldBeNil)
	for i, l := range inferred {
		if len(l.Groups) == 0 {
			test.That(t, ls.Label(i).Groups, test.ShouldBeEmpty)
			continue
		}
		test.That(t, l.Groups, test.ShouldResemble, ls.Label(i).Groups)
	}
}
