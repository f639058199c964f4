package storage

import (
	"testing"
)

func TestParseAccessMode(t *testing.T) {
	cases := map[string]AccessMode{
		"r": ReadOnly, "w": WriteOnly, "w+": WriteOnly,
		"a": AppendOnly, "a+": AppendOnly, "r+": ReadWrite,
	}
	for s, want := range cases {
		got, err := ParseAccessMode(s)
		if err != nil {
			t.Fatalf("ParseAccessMode(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseAccessMode(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseAccessMode("bogus"); err == nil {
		t.Fatal("expected error for unrecognized mode")
	}
}

func row(ts string, measurement string) Row {
	return Row{ts, measurement}
}
