package namecodec

import "testing"

func TestMangleDuplicateNames(t *testing.T) {
	in := []string{"A.BIN", "A.BIN", "A.BIN"}
	out, err := Mangle(in, 31)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A.BIN", "A0.BIN", "A1.BIN"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("index %d: got %q want %q", i, out[i], want[i])
		}
	}
	seen := map[string]bool{}
	for _, n := range out {
		if seen[n] {
			t.Fatalf("duplicate mangled name %q", n)
		}
		seen[n] = true
	}
}

func TestMangleRespectsLengthBudget(t *testing.T) {
	in := []string{"LONGSTEMNAME.TXT", "LONGSTEMNAME.TXT"}
	out, err := Mangle(in, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range out {
		if len(n) > 16 {
			t.Fatalf("mangled name %q exceeds budget (%d > 16)", n, len(n))
		}
	}
	if out[0] == out[1] {
		t.Fatalf("names not disambiguated: %q", out[0])
	}
}
