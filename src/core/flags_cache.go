package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zachgrayio/bkvalidate/src/fs"
)

// FlagsCacheFile is the location of the persisted flags cache, relative to the workspace root.
const FlagsCacheFile = ".buildkite/.bazel-flags-cache.json"

// bazelrcFiles are the files that can change what canonicalize-flags returns.
var bazelrcFiles = []string{".bazelrc", ".bazelrc.user", "bazel/bazelrc"}

type persistedFlagsCache struct {
	Entries      map[string]persistedFlagsEntry `json:"entries"`
	BazelrcMtime int64                          `json:"bazelrc_mtime"`
}

type persistedFlagsEntry struct {
	CanonicalFlags []string `json:"canonical_flags"`
}

// bazelrcMtime returns the most recent modification time of the workspace's bazelrc files,
// in seconds since the epoch, or zero if there are none.
func (ctx *ValidationContext) bazelrcMtime() int64 {
	if t := fs.LatestModTime(BazelrcFiles(ctx.workspace)...); !t.IsZero() {
		return t.Unix()
	}
	return 0
}

// BazelrcFiles returns the paths of the bazelrc files in a workspace, whether they exist or not.
func BazelrcFiles(workspace string) []string {
	filenames := make([]string, len(bazelrcFiles))
	for i, f := range bazelrcFiles {
		filenames[i] = filepath.Join(workspace, f)
	}
	return filenames
}

// loadFlagsCache populates the flags cache from disk. It's discarded if any bazelrc file has
// changed since it was written.
func (ctx *ValidationContext) loadFlagsCache() {
	filename := filepath.Join(ctx.workspace, FlagsCacheFile)
	b, err := os.ReadFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warning("Failed to read flags cache: %s", err)
		}
		return
	}
	cache := persistedFlagsCache{}
	if err := json.Unmarshal(b, &cache); err != nil {
		log.Warning("Ignoring invalid flags cache %s: %s", filename, err)
		return
	}
	if mtime := ctx.bazelrcMtime(); cache.BazelrcMtime != mtime {
		log.Debug("Flags cache invalidated: bazelrc mtime changed (%d -> %d)", cache.BazelrcMtime, mtime)
		return
	}
	ctx.mutex.Lock()
	defer ctx.mutex.Unlock()
	for k, v := range cache.Entries {
		key, err := strconv.ParseUint(k, 16, 64)
		if err != nil {
			log.Debug("Skipping flags cache entry with bad key %s", k)
			continue
		}
		ctx.flagsCache[key] = v.CanonicalFlags
	}
	log.Debug("Loaded flags cache with %d entries", len(ctx.flagsCache))
}

// SaveFlagsCache persists the flags cache to the workspace if that's configured and there's
// anything new to write.
func (ctx *ValidationContext) SaveFlagsCache() error {
	if ctx.workspace == "" || !ctx.Config.Validation.PersistFlagsCache {
		return nil
	}
	ctx.mutex.Lock()
	if !ctx.flagsCacheDirty {
		ctx.mutex.Unlock()
		return nil
	}
	cache := persistedFlagsCache{
		Entries:      make(map[string]persistedFlagsEntry, len(ctx.flagsCache)),
		BazelrcMtime: ctx.bazelrcMtime(),
	}
	for k, v := range ctx.flagsCache {
		cache.Entries[strconv.FormatUint(k, 16)] = persistedFlagsEntry{CanonicalFlags: v}
	}
	ctx.mutex.Unlock()

	b, err := json.MarshalIndent(&cache, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.WriteFile(bytes.NewReader(b), filepath.Join(ctx.workspace, FlagsCacheFile), 0644); err != nil {
		return fmt.Errorf("failed to save flags cache: %w", err)
	}
	ctx.mutex.Lock()
	// Entries only get added, so anything cached while we were writing leaves it dirty.
	ctx.flagsCacheDirty = len(ctx.flagsCache) != len(cache.Entries)
	ctx.mutex.Unlock()
	log.Debug("Saved flags cache with %d entries", len(cache.Entries))
	return nil
}
