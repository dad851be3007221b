package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbComplete(t *testing.T) {
	completions := Verb("").Complete("co")
	assert.Equal(t, 1, len(completions))
	assert.Equal(t, "coverage", completions[0].Item)
	assert.Equal(t, 2, len(Verb("").Complete("c"))) // coverage, cquery
}

func TestSupportsNoBuild(t *testing.T) {
	config := DefaultConfiguration()
	assert.True(t, Verb("build").SupportsNoBuild(config))
	assert.True(t, Verb("coverage").SupportsNoBuild(config))
	assert.False(t, Verb("query").SupportsNoBuild(config))
	config.Bazel.NoBuildVerb = []string{"query"}
	assert.True(t, Verb("query").SupportsNoBuild(config))
	assert.False(t, Verb("build").SupportsNoBuild(config))
}
