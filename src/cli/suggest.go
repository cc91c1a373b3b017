package cli

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Suggest implements levenshtein-based suggestions on a sequence of items.
// Comparison is case-insensitive; the suggestions are returned as given in the haystack.
func Suggest(needle string, haystack []string, maxSuggestionDistance int) []string {
	r := []rune(strings.ToLower(needle))
	options := make([]suggestion, 0, len(haystack))
	for _, straw := range haystack {
		distance := levenshtein.DistanceForStrings(r, []rune(strings.ToLower(straw)), levenshtein.DefaultOptions)
		if len(straw) > 0 && distance <= maxSuggestionDistance {
			options = append(options, suggestion{s: straw, dist: distance})
		}
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].dist < options[j].dist })
	ret := make([]string, len(options))
	for i, o := range options {
		ret[i] = o.s
	}
	return ret
}

// PrettyPrintSuggestion produces a single message from the suggestions for needle,
// or the empty string if there aren't any.
func PrettyPrintSuggestion(needle string, haystack []string, maxSuggestionDistance int) string {
	options := Suggest(needle, haystack, maxSuggestionDistance)
	switch len(options) {
	case 0:
		return ""
	case 1:
		return "; maybe you meant " + options[0] + "?"
	}
	return "; maybe you meant " + strings.Join(options[:len(options)-1], ", ") + " or " + options[len(options)-1] + "?"
}

type suggestion struct {
	s    string
	dist int
}
