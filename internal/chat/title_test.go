package chat

import (
	"strings"
	"testing"
)

func TestTitleFromMessage(t *testing.T) {
	long := strings.Repeat("x", 60)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short", in: "Hi there", want: "Hi there"},
		{name: "exactly five words", in: "one two three four five", want: "one two three four five"},
		{name: "six words", in: "a b c d e f", want: "a b c d e..."},
		{name: "collapses whitespace", in: "a  b\tc\nd e   f g", want: "a b c d e..."},
		{name: "long single word", in: long, want: strings.Repeat("x", 50) + "..."},
		{name: "exactly fifty chars", in: strings.Repeat("y", 50), want: strings.Repeat("y", 50)},
		{name: "multibyte counted as characters", in: strings.Repeat("é", 51), want: strings.Repeat("é", 50) + "..."},
		{name: "surrounding space trimmed", in: "  hello  ", want: "hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TitleFromMessage(tc.in); got != tc.want {
				t.Fatalf("TitleFromMessage(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
