package textutil

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  Hello \n\t world ":             "Hello world",
		"Cafe\u0301":                      "Caf\u00e9",
		"tab\x00bed":                      "tabbed",
		"":                                "",
		"already normal":                  "already normal",
		"\u00a0leading nbsp\u00a0\u00a0x": "leading nbsp x",
	}
	for in, want := range cases {
		if got := NormalizeText(in); got != want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("a longer caption here", 10); got != "a longe..." {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abcdef", 2); got != "ab" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
