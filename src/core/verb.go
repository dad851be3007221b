package core

import (
	"strings"

	"github.com/thought-machine/go-flags"
)

// A Verb is a Bazel command, e.g. build or test.
type Verb string

// KnownVerbs are the Bazel commands we know how to validate against; this only
// exists for tab-completion.
var KnownVerbs = []Verb{"build", "test", "run", "coverage", "query", "cquery", "aquery", "fetch", "mobile-install", "print_action"}

// Complete suggests completions for a partial verb.
func (verb Verb) Complete(match string) []flags.Completion {
	ret := []flags.Completion{}
	for _, v := range KnownVerbs {
		if strings.HasPrefix(string(v), match) {
			ret = append(ret, flags.Completion{Item: string(v)})
		}
	}
	return ret
}

// SupportsNoBuild returns true if this verb accepts --nobuild according to the given config.
func (verb Verb) SupportsNoBuild(config *Configuration) bool {
	for _, v := range config.NoBuildVerbs() {
		if v == string(verb) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (verb Verb) String() string {
	return string(verb)
}
