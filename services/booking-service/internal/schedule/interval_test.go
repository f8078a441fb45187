package schedule

import (
	"reflect"
	"testing"
)

func TestIntervalValidate(t *testing.T) {
	cases := []struct {
		name    string
		iv      Interval
		wantErr bool
	}{
		{"valid", Interval{540, 1020}, false},
		{"full day", Interval{0, 1440}, false},
		{"empty", Interval{600, 600}, true},
		{"inverted", Interval{700, 600}, true},
		{"negative start", Interval{-10, 60}, true},
		{"past midnight", Interval{1400, 1441}, true},
	}
	for _, tc := range cases {
		err := tc.iv.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{540, 600}
	if a.Overlaps(Interval{600, 660}) {
		t.Fatal("touching intervals must not overlap")
	}
	if !a.Overlaps(Interval{599, 601}) {
		t.Fatal("expected overlap on shared minute")
	}
	if !a.Overlaps(Interval{500, 700}) {
		t.Fatal("expected overlap when contained")
	}
	if a.Overlaps(Interval{400, 500}) {
		t.Fatal("disjoint intervals must not overlap")
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]Interval{{600, 660}, {540, 600}, {700, 720}, {650, 680}})
	want := []Interval{{540, 680}, {700, 720}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %v, want %v", got, want)
	}
}

func TestSubtract(t *testing.T) {
	cases := []struct {
		name   string
		base   []Interval
		blocks []Interval
		want   []Interval
	}{
		{
			name:   "block splits base",
			base:   []Interval{{540, 1020}},
			blocks: []Interval{{720, 780}},
			want:   []Interval{{540, 720}, {780, 1020}},
		},
		{
			name:   "block clips edge",
			base:   []Interval{{540, 1020}},
			blocks: []Interval{{500, 600}},
			want:   []Interval{{600, 1020}},
		},
		{
			name:   "block swallows base",
			base:   []Interval{{600, 660}},
			blocks: []Interval{{540, 720}},
			want:   nil,
		},
		{
			name:   "overlapping blocks merged first",
			base:   []Interval{{540, 1020}},
			blocks: []Interval{{600, 700}, {650, 750}},
			want:   []Interval{{540, 600}, {750, 1020}},
		},
		{
			name:   "no blocks",
			base:   []Interval{{540, 1020}},
			blocks: nil,
			want:   []Interval{{540, 1020}},
		},
	}
	for _, tc := range cases {
		got := Subtract(tc.base, tc.blocks)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: Subtract() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
