package photo

import (
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"case and space folding", []string{"  Sunset ", "SUNSET"}, []string{"sunset"}},
		{"empty entries dropped", []string{"", "   ", "beach"}, []string{"beach"}},
		{"sorted output", []string{"b", "A", "c"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	got := SplitTags(" Travel, family ,,TRAVEL")
	want := []string{"family", "travel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitTags = %q, want %q", got, want)
	}

	if got := SplitTags("   "); len(got) != 0 {
		t.Errorf("SplitTags(blank) = %q, want empty", got)
	}
}
