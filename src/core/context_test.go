package core

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	assert.Equal(t, CacheKey("build", []string{"--config=ci", "-c", "opt"}), CacheKey("build", []string{"--config=ci", "-c", "opt"}))
}

func TestCacheKeyChanges(t *testing.T) {
	key := CacheKey("build", []string{"--config=ci", "-c"})
	assert.NotEqual(t, key, CacheKey("test", []string{"--config=ci", "-c"}))
	assert.NotEqual(t, key, CacheKey("build", []string{"--config=ci", "-d"}))
	assert.NotEqual(t, key, CacheKey("build", []string{"-c", "--config=ci"}))
	assert.NotEqual(t, key, CacheKey("build", []string{"--config=ci"}))
	// Token boundaries are significant.
	assert.NotEqual(t, CacheKey("build", []string{"ab", "c"}), CacheKey("build", []string{"a", "bc"}))
}

func TestValidatedSets(t *testing.T) {
	ctx := NewValidationContextForWorkspace(DefaultConfiguration(), "")
	assert.False(t, ctx.IsValidated(Targets, "//foo:bar"))
	ctx.MarkValidated(Targets, "//foo:bar")
	assert.True(t, ctx.IsValidated(Targets, "//foo:bar"))
	assert.False(t, ctx.IsValidated(Paths, "//foo:bar"))
	assert.Equal(t, 1, ctx.NumValidated(Targets))
	assert.Equal(t, 0, ctx.NumValidated(EnvVars))
}

func TestFlagsCache(t *testing.T) {
	ctx := NewValidationContextForWorkspace(DefaultConfiguration(), "")
	key := CacheKey("build", []string{"-c", "opt"})
	_, present := ctx.CachedFlags(key)
	assert.False(t, present)
	ctx.CacheFlags(key, []string{"--compilation_mode=opt"})
	flags, present := ctx.CachedFlags(key)
	assert.True(t, present)
	assert.Equal(t, []string{"--compilation_mode=opt"}, flags)
}

func TestWarnNoWorkspaceOnce(t *testing.T) {
	ctx := NewValidationContextForWorkspace(DefaultConfiguration(), "")
	var wg sync.WaitGroup
	var mutex sync.Mutex
	warned := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.WarnNoWorkspace() {
				mutex.Lock()
				warned++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, warned)
	assert.False(t, ctx.WarnNoWorkspace())
}

func TestNewValidationContextFindsWorkspace(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Workspace.BasePath = filepath.Join(root, "foo", "bar")
	ctx := NewValidationContext(config)
	assert.Equal(t, root, ctx.Workspace())
	assert.True(t, ctx.Enabled())
	assert.False(t, ctx.WarnOnly())
	config.Validation.Disable = true
	assert.False(t, ctx.Enabled())
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestPersistentFlagsCache(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Validation.PersistFlagsCache = true
	key := CacheKey("build", []string{"-c", "opt"})

	ctx := NewValidationContextForWorkspace(config, root)
	require.NoError(t, ctx.SaveFlagsCache()) // Nothing to write yet
	assert.NoFileExists(t, filepath.Join(root, FlagsCacheFile))
	ctx.CacheFlags(key, []string{"--compilation_mode=opt"})
	require.NoError(t, ctx.SaveFlagsCache())
	assert.FileExists(t, filepath.Join(root, FlagsCacheFile))

	ctx = NewValidationContextForWorkspace(config, root)
	flags, present := ctx.CachedFlags(key)
	assert.True(t, present)
	assert.Equal(t, []string{"--compilation_mode=opt"}, flags)
}

func TestPersistentFlagsCacheInvalidatedByBazelrc(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	bazelrc := filepath.Join(root, ".bazelrc")
	require.NoError(t, os.WriteFile(bazelrc, []byte("build --config=ci\n"), 0644))
	then := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(bazelrc, then, then))
	config := DefaultConfiguration()
	config.Validation.PersistFlagsCache = true
	key := CacheKey("build", []string{"-c", "opt"})

	ctx := NewValidationContextForWorkspace(config, root)
	ctx.CacheFlags(key, []string{"--compilation_mode=opt"})
	require.NoError(t, ctx.SaveFlagsCache())

	now := time.Now()
	require.NoError(t, os.Chtimes(bazelrc, now, now))
	ctx = NewValidationContextForWorkspace(config, root)
	_, present := ctx.CachedFlags(key)
	assert.False(t, present)
}

func TestPersistentFlagsCacheRetriedAfterFailedWrite(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Validation.PersistFlagsCache = true
	key := CacheKey("build", []string{"-c", "opt"})
	// A file where the cache directory should be stops it being written.
	blocker := filepath.Join(root, filepath.Dir(FlagsCacheFile))
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	ctx := NewValidationContextForWorkspace(config, root)
	ctx.CacheFlags(key, []string{"--compilation_mode=opt"})
	assert.Error(t, ctx.SaveFlagsCache())

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, ctx.SaveFlagsCache())
	assert.FileExists(t, filepath.Join(root, FlagsCacheFile))

	ctx = NewValidationContextForWorkspace(config, root)
	flags, present := ctx.CachedFlags(key)
	assert.True(t, present)
	assert.Equal(t, []string{"--compilation_mode=opt"}, flags)
}

func TestPersistentFlagsCacheDisabled(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	ctx := NewValidationContextForWorkspace(DefaultConfiguration(), root)
	ctx.CacheFlags(CacheKey("build", []string{"-c"}), []string{"-c"})
	require.NoError(t, ctx.SaveFlagsCache())
	assert.NoFileExists(t, filepath.Join(root, FlagsCacheFile))
}
