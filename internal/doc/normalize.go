package doc

import (
	"strings"
	"unicode"
)

// normalize turns the raw comment lines of a block into one doc string. The
// smallest indentation among non-empty lines is removed from every line.
func normalize(lines []string) string {
	k := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		n := leadingSpace(l)
		if k < 0 || n < k {
			k = n
		}
	}
	if k < 0 {
		k = 0
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = dropRunes(l, k)
	}
	return strings.Join(out, "\n")
}

func leadingSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

func dropRunes(s string, k int) string {
	for i := range s {
		if k == 0 {
			return s[i:]
		}
		k--
	}
	return ""
}
