package flatfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"empty", "", []string{""}},
		{"trailing delimiter", "a,b,", []string{"a", "b", ""}},
		{"quoted delimiter", `P001,"1 High St, Leeds",LS1`, []string{"P001", "1 High St, Leeds", "LS1"}},
		{"empty quoted", `a,"",c`, []string{"a", "", "c"}},
		{"quote mid field", `ab"c,d"e,f`, []string{"abc,de", "f"}},
		{"unterminated quote", `a,"b,c`, []string{"a", "b,c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitLine(tt.line)); diff != "" {
				t.Errorf("SplitLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestJoinLine(t *testing.T) {
	got := JoinLine([]string{"P001", "1 High St, Leeds", "LS1"}, []int{1})
	want := `P001,"1 High St, Leeds",LS1`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got := JoinLine([]string{"a", "b"}, nil); got != "a,b" {
		t.Errorf("expected a,b, got %s", got)
	}
}

func TestJoinLine_FlattensLineBreaks(t *testing.T) {
	got := JoinLine([]string{"A001", "line1\nline2", "a\r\nb\rc"}, []int{1})
	want := `A001,"line1 line2",a b c`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if n := len(SplitLine(got)); n != 3 {
		t.Errorf("expected 3 fields, got %d", n)
	}
}

func TestJoinSplit_RoundTrip(t *testing.T) {
	fields := []string{"A001", "P001", "", "notes, with commas", "30"}
	got := SplitLine(JoinLine(fields, []int{3}))
	if diff := cmp.Diff(fields, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLossless(t *testing.T) {
	tests := []struct {
		field  string
		quoted bool
		want   bool
	}{
		{"plain", false, true},
		{"a, b", true, true},
		{"a, b", false, false},
		{`say "hi"`, true, false},
		{"line\nbreak", true, false},
	}
	for _, tt := range tests {
		if got := lossless(tt.field, tt.quoted); got != tt.want {
			t.Errorf("lossless(%q, %v) = %v, want %v", tt.field, tt.quoted, got, tt.want)
		}
	}
}
