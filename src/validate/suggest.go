package validate

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// maxSuggestionDistance is the furthest a name can be from what was asked for and still be suggested.
const maxSuggestionDistance = 3

// maxSuggestions is the most names we'll suggest at once.
const maxSuggestions = 3

// suggest returns the names closest to needle, nearest first.
func suggest(needle string, haystack []string) []string {
	type candidate struct {
		name     string
		distance int
	}
	r := []rune(needle)
	candidates := make([]candidate, 0, len(haystack))
	for _, name := range haystack {
		if distance := levenshtein.DistanceForStrings(r, []rune(name), levenshtein.DefaultOptions); name != "" && distance <= maxSuggestionDistance {
			candidates = append(candidates, candidate{name: name, distance: distance})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	ret := make([]string, len(candidates))
	for i, c := range candidates {
		ret[i] = c.name
	}
	return ret
}

// suggestion formats the suggestions for needle into a message suffix, or the empty string if
// there aren't any.
func suggestion(needle string, haystack []string) string {
	options := suggest(needle, haystack)
	switch len(options) {
	case 0:
		return ""
	case 1:
		return "\nMaybe you meant :" + options[0] + " ?"
	}
	return "\nMaybe you meant :" + strings.Join(options[:len(options)-1], " , :") + " or :" + options[len(options)-1] + " ?"
}

// combine turns a list of errors into a single one, or nil if there aren't any.
func combine(errs []error) error {
	if len(errs) == 0 {
		return nil
	} else if len(errs) == 1 {
		return errs[0]
	}
	return multierror.Append(nil, errs...)
}
