package ticket

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ID
	}{
		{name: "colon and list", text: "Bug: 1234, 5678 and 91011", want: []ID{"1234", "5678", "91011"}},
		{name: "issue keyword", text: "issue 42", want: []ID{"42"}},
		{name: "no keyword", text: "just PR 42", want: []ID{}},
		{name: "empty", text: "", want: []ID{}},
		{name: "case insensitive", text: "Fixes BUG 100", want: []ID{"100"}},
		{name: "plural", text: "bugs 7 & 8", want: []ID{"7", "8"}},
		{name: "ticket keyword", text: "ticket: 9", want: []ID{"9"}},
		{name: "tracker item", text: "Tracker Item 55+56", want: []ID{"55", "56"}},
		{name: "hash prefix", text: "issue #12", want: []ID{"12"}},
		{name: "no space after colon", text: "bug:123", want: []ID{"123"}},
		{name: "duplicates collapse", text: "bug 5, 5 and 6, 5", want: []ID{"5", "6"}},
		{name: "keyword inside word", text: "debug 42", want: []ID{}},
		{name: "title after ids", text: "Bug 1470323 - Fix the thing", want: []ID{"1470323"}},
		{name: "keyword without ids", text: "fix bug in parser", want: []ID{}},
		{name: "first run only", text: "bug 1 then issue 2", want: []ID{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_OnlyUniqueDigitStrings(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)
	inputs := []string{
		"Bug: 1234, 5678 and 91011",
		"bugs 1,1,1,2 & 3 and 2",
		"Issue ## 4 + 4",
		"tracker items 10 and and 20",
	}

	for _, input := range inputs {
		ids := Extract(input)
		seen := make(map[ID]bool)
		for _, id := range ids {
			assert.Regexp(t, digits, string(id), "input %q", input)
			assert.False(t, seen[id], "duplicate %s for input %q", id, input)
			seen[id] = true
		}
	}
}

func TestExtractAll(t *testing.T) {
	ids := ExtractAll("bug 5", "unrelated change", "Bug 6, 5", "issue 7")
	assert.Equal(t, []ID{"5", "6", "7"}, ids)
	assert.Empty(t, ExtractAll())
	assert.Equal(t, []string{"5", "6", "7"}, Strings(ids))
}
