// Utilities for reading the bkvalidate config files.

package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/please-build/gcfg"

	"github.com/zachgrayio/bkvalidate/src/cli/logging"
)

var log = logging.Log

// ConfigFileName is the file name for the typical repo config - this is normally checked in.
const ConfigFileName string = ".bkvalidateconfig"

// LocalConfigFileName is the file name for the local repo config - this is not normally checked
// in and used to override settings on the local machine.
const LocalConfigFileName string = ".bkvalidateconfig.local"

// Environment variables we consult.
const (
	SkipValidationEnv  = "BUILDKITE_SKIP_RUNTIME_VALIDATION"
	WarnOnlyEnv        = "BUILDKITE_VALIDATION_WARN_ONLY"
	WorkspaceDirEnv    = "BUILD_WORKSPACE_DIRECTORY"
	BasePathEnv        = "BUILDKITE_VALIDATION_BASE_PATH"
	ManifestDirEnv     = "CARGO_MANIFEST_DIR"
	defaultPushJobName = "bkvalidate"
)

// A Configuration contains all the settings that can be configured about validation.
// It is read from the config files and then overridden by the environment and command line.
type Configuration struct {
	Validation struct {
		Disable           bool `help:"Disables all validation; every check succeeds without doing anything." var:"BUILDKITE_SKIP_RUNTIME_VALIDATION"`
		WarnOnly          bool `help:"Logs validation failures as warnings instead of failing." var:"BUILDKITE_VALIDATION_WARN_ONLY"`
		StrictFlags       bool `help:"Also excludes -:target subtractions when picking out flags to canonicalise."`
		PersistFlagsCache bool `help:"Persists canonicalised flags to .buildkite/.bazel-flags-cache.json in the workspace."`
	}
	Workspace struct {
		Root     string `help:"Overrides the workspace root. Validation walks upwards from here looking for MODULE.bazel or WORKSPACE." var:"BUILD_WORKSPACE_DIRECTORY"`
		BasePath string `help:"Directory to start searching for the workspace from if no root is given." var:"BUILDKITE_VALIDATION_BASE_PATH"`
	}
	Bazel struct {
		Tool        string   `help:"The Bazel binary to invoke. Defaults to bazel."`
		NoBuildVerb []string `help:"Verbs that are given --nobuild during a dry run."`
		BenignError []string `help:"Substrings of stderr error lines that don't count as failures during a dry run."`
	}
	Metrics struct {
		PushGatewayURL string `help:"Prometheus pushgateway to send validation counters to after each run."`
		Job            string `help:"Job name to push metrics under."`
	}
}

// DefaultConfiguration returns the default configuration object with no overrides.
func DefaultConfiguration() *Configuration {
	config := &Configuration{}
	config.Bazel.Tool = "bazel"
	config.Metrics.Job = defaultPushJobName
	return config
}

// ConfigFiles returns the config files that are read for the given workspace, in order.
func ConfigFiles(workspace string) []string {
	return []string{
		filepath.Join(workspace, ConfigFileName),
		filepath.Join(workspace, LocalConfigFileName),
	}
}

func readConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil // It's not an error to not have the file at all.
	} else if err != nil {
		return err
	}
	log.Debug("Read config from %s", filename)
	return nil
}

// ReadConfigFiles reads all the given config files, in order, and merges them into the config.
func ReadConfigFiles(config *Configuration, filenames []string) error {
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return err
		}
	}
	return nil
}

// Default values for slices. These add rather than overwriting when read from a file so we
// can't set them upfront as we would with other config values.
var (
	defaultNoBuildVerbs = []string{"build", "test", "run", "coverage"}
	defaultBenignErrors = []string{"Unable to run tests", "Couldn't start the build"}
)

// NoBuildVerbs returns the verbs that are given --nobuild during a dry run.
func (config *Configuration) NoBuildVerbs() []string {
	return orDefault(config.Bazel.NoBuildVerb, defaultNoBuildVerbs)
}

// BenignErrors returns the substrings of error lines that are ignored during a dry run.
func (config *Configuration) BenignErrors() []string {
	return orDefault(config.Bazel.BenignError, defaultBenignErrors)
}

func orDefault(conf, def []string) []string {
	if len(conf) == 0 {
		return def
	}
	return conf
}

// ApplyEnvironment overrides settings from environment variables, as returned by getenv.
// Switches are only changed when their variable is set at all.
func (config *Configuration) ApplyEnvironment(getenv func(string) string) {
	if v := getenv(SkipValidationEnv); v != "" {
		config.Validation.Disable = IsTruthy(v)
	}
	if v := getenv(WarnOnlyEnv); v != "" {
		config.Validation.WarnOnly = IsTruthy(v)
	}
	if v := getenv(WorkspaceDirEnv); v != "" {
		config.Workspace.Root = v
	}
	if v := getenv(BasePathEnv); v != "" {
		config.Workspace.BasePath = v
	} else if v := getenv(ManifestDirEnv); v != "" && config.Workspace.BasePath == "" {
		config.Workspace.BasePath = v
	}
}

// IsTruthy returns true if the given environment value switches something on.
func IsTruthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

// LoadConfiguration builds the full configuration: defaults, then the environment, then the given
// overrides (typically from the command line), which are enough to locate the workspace. The
// workspace's config files are then read, and the environment and overrides reapplied over them
// since they always take precedence.
func LoadConfiguration(getenv func(string) string, overrides func(*Configuration), extraFiles ...string) (*Configuration, error) {
	config := DefaultConfiguration()
	apply := func() {
		config.ApplyEnvironment(getenv)
		if overrides != nil {
			overrides(config)
		}
	}
	apply()
	var files []string
	if ws := FindWorkspace(config); ws != "" {
		files = ConfigFiles(ws)
	}
	if err := ReadConfigFiles(config, append(files, extraFiles...)); err != nil {
		return config, err
	}
	apply()
	return config, nil
}
