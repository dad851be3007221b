// Package pipeline finds the Bazel commands in a Buildkite pipeline definition so they can
// be validated before the pipeline is uploaded.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/shlex"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zachgrayio/bkvalidate/src/buildfile"
	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
)

var log = logging.Log

// Tools are the binaries whose invocations we look for.
var Tools = []string{"bazel", "bazelisk"}

// A Command is a single invocation of Bazel found in a pipeline step.
type Command struct {
	// StepKey and StepLabel identify the step; either may be empty.
	StepKey   string
	StepLabel string
	Line      string
	Verb      core.Verb
	Args      []string
}

// Step returns a description of the step this command is in, for messages.
func (cmd *Command) Step() string {
	if cmd.StepKey != "" {
		return cmd.StepKey
	} else if cmd.StepLabel != "" {
		return cmd.StepLabel
	}
	return "<unnamed step>"
}

// Targets returns the target patterns this command refers to.
func (cmd *Command) Targets() []string {
	return core.ExtractTargets(cmd.Args)
}

type document struct {
	Steps []any `yaml:"steps"`
}

// ScanFile scans the pipeline in the given file.
func ScanFile(filename string) ([]*Command, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Scan(data)
}

// Scan returns all the Bazel commands in a pipeline definition, in the order they appear.
// Group steps are descended into; wait, block and trigger steps have no commands.
func Scan(data []byte) ([]*Command, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	var cmds []*Command
	if err := scanSteps(doc.Steps, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

func scanSteps(steps []any, cmds *[]*Command) error {
	for _, s := range steps {
		step, ok := s.(map[string]any)
		if !ok {
			continue // "wait" and friends
		}
		if group, ok := step["steps"].([]any); ok {
			if err := scanSteps(group, cmds); err != nil {
				return err
			}
			continue
		}
		key, _ := step["key"].(string)
		label, _ := step["label"].(string)
		for _, field := range []string{"command", "commands", "cmd"} {
			for _, line := range commandLines(step[field]) {
				cmd, err := ParseCommandLine(line)
				if err != nil {
					return fmt.Errorf("step %s: %w", orDefault(key, label), err)
				}
				for _, c := range cmd {
					c.StepKey = key
					c.StepLabel = label
					*cmds = append(*cmds, c)
				}
			}
		}
	}
	return nil
}

// commandLines returns the individual lines of a command field, which may be a string or a list.
// Lines ending in a backslash are joined to the next one.
func commandLines(v any) []string {
	var raw []string
	switch c := v.(type) {
	case string:
		raw = []string{c}
	case []any:
		for _, item := range c {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	var lines []string
	for _, r := range raw {
		current := ""
		for _, line := range strings.Split(r, "\n") {
			if strings.HasSuffix(line, "\\") {
				current += strings.TrimSuffix(line, "\\") + " "
				continue
			}
			if line = strings.TrimSpace(current + line); line != "" {
				lines = append(lines, line)
			}
			current = ""
		}
		if current = strings.TrimSpace(current); current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// ParseCommandLine returns the Bazel commands in a single shell command line.
// Lines are split on &&, || and ; so chained commands are all found.
func ParseCommandLine(line string) ([]*Command, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("can't split %q: %w", line, err)
	}
	var cmds []*Command
	for _, segment := range segments(words) {
		if cmd := parseSegment(segment); cmd != nil {
			cmd.Line = line
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

func segments(words []string) [][]string {
	var ret [][]string
	start := 0
	for i, word := range words {
		if word == "&&" || word == "||" || word == ";" || word == "|" {
			ret = append(ret, words[start:i])
			start = i + 1
		} else if strings.HasSuffix(word, ";") && len(word) > 1 {
			words[i] = strings.TrimSuffix(word, ";")
			ret = append(ret, words[start:i+1])
			start = i + 1
		}
	}
	return append(ret, words[start:])
}

// parseSegment parses a single command, returning nil if it's not a Bazel invocation.
// Startup options between the binary and the verb are skipped.
func parseSegment(words []string) *Command {
	if len(words) == 0 || !slices.Contains(Tools, filepath.Base(words[0])) {
		return nil
	}
	for i, word := range words[1:] {
		if !strings.HasPrefix(word, "-") {
			return &Command{Verb: core.Verb(word), Args: words[i+2:]}
		}
	}
	return nil
}

// BuildFiles returns the BUILD files that define the packages the commands refer to, which are
// the files whose changes can affect validation. Packages that don't exist are ignored.
func BuildFiles(workspace, pkg string, cmds []*Command) []string {
	files := map[string]struct{}{}
	for _, cmd := range cmds {
		for _, target := range cmd.Targets() {
			if core.ShouldSkip(target) {
				continue
			}
			label, err := core.ResolveLabel(target, pkg)
			if err != nil {
				continue
			}
			if filename, err := buildfile.Find(workspace, label.Package); err == nil {
				files[filename] = struct{}{}
			} else {
				log.Debug("%s", err)
			}
		}
	}
	ret := maps.Keys(files)
	slices.Sort(ret)
	return ret
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
