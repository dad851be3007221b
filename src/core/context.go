package core

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// A ValidationSet identifies one of the sets of things we've already validated.
type ValidationSet int

// The sets we keep track of.
const (
	Targets ValidationSet = iota
	Paths
	EnvVars
)

// A ValidationContext holds the state shared between all validation calls within a process:
// the workspace, everything validated so far and the canonicalised flags cache.
type ValidationContext struct {
	Config *Configuration

	workspace string
	mutex     sync.Mutex
	validated [3]map[string]struct{}
	// flagsCache maps CacheKey(verb, flags) to the canonical flags Bazel gave us back.
	flagsCache map[uint64][]string
	// flagsCacheDirty is true when there are entries that haven't been persisted yet.
	flagsCacheDirty bool

	warnedNoWorkspace atomic.Bool
}

// NewValidationContext creates a new context for the given config.
// The workspace is located now and never re-polled.
func NewValidationContext(config *Configuration) *ValidationContext {
	return NewValidationContextForWorkspace(config, FindWorkspace(config))
}

// NewValidationContextForWorkspace creates a new context with an already-known workspace.
// An empty workspace means there isn't one.
func NewValidationContextForWorkspace(config *Configuration, workspace string) *ValidationContext {
	ctx := &ValidationContext{
		Config:     config,
		workspace:  workspace,
		flagsCache: map[uint64][]string{},
	}
	for i := range ctx.validated {
		ctx.validated[i] = map[string]struct{}{}
	}
	if workspace != "" && config.Validation.PersistFlagsCache {
		ctx.loadFlagsCache()
	}
	return ctx
}

var defaultContext *ValidationContext
var defaultOnce sync.Once

// Default returns the process-wide context, creating it on first use from the
// environment and any config files in the workspace.
func Default() *ValidationContext {
	defaultOnce.Do(func() {
		config, err := LoadConfiguration(os.Getenv, nil)
		if err != nil {
			log.Warning("Error reading config files: %s", err)
		}
		defaultContext = NewValidationContext(config)
	})
	return defaultContext
}

// Workspace returns the workspace root, or the empty string if there isn't one.
func (ctx *ValidationContext) Workspace() string {
	return ctx.workspace
}

// Enabled returns true if validation should be performed at all.
func (ctx *ValidationContext) Enabled() bool {
	return !ctx.Config.Validation.Disable
}

// WarnOnly returns true if failures should be logged rather than returned.
func (ctx *ValidationContext) WarnOnly() bool {
	return ctx.Config.Validation.WarnOnly
}

// IsValidated returns true if the given key has already been validated successfully.
func (ctx *ValidationContext) IsValidated(set ValidationSet, key string) bool {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	_, present := ctx.validated[set][key]
	return present
}

// MarkValidated records that the given key has been validated successfully.
func (ctx *ValidationContext) MarkValidated(set ValidationSet, key string) {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	ctx.validated[set][key] = struct{}{}
}

// NumValidated returns how many keys in the given set have been validated.
func (ctx *ValidationContext) NumValidated(set ValidationSet) int {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	return len(ctx.validated[set])
}

// CachedFlags returns the canonical flags for the given key, if we have them.
func (ctx *ValidationContext) CachedFlags(key uint64) ([]string, bool) {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	flags, present := ctx.flagsCache[key]
	return flags, present
}

// CacheFlags stores the canonical flags for the given key.
// Concurrent callers may store the same key twice; the values are always equivalent.
func (ctx *ValidationContext) CacheFlags(key uint64, flags []string) {
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	ctx.flagsCache[key] = flags
	ctx.flagsCacheDirty = true
}

// WarnNoWorkspace logs a warning about the workspace being missing, but only the first
// time it's called for this context. It returns true if it logged.
func (ctx *ValidationContext) WarnNoWorkspace() bool {
	if !ctx.warnedNoWorkspace.CompareAndSwap(false, true) {
		return false
	}
	log.Warning("Could not find Bazel workspace (no MODULE.bazel or WORKSPACE found), skipping validation")
	return true
}

// CacheKey returns a key for the canonicalisation of the given flags for the given verb.
func CacheKey(verb string, flags []string) uint64 {
	d := xxhash.New()
	d.WriteString(verb)
	for _, flag := range flags {
		d.Write([]byte{0})
		d.WriteString(flag)
	}
	return d.Sum64()
}
