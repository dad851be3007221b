package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/zachgrayio/bkvalidate/src/cli"
	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/dryrun"
	"github.com/zachgrayio/bkvalidate/src/fs"
	"github.com/zachgrayio/bkvalidate/src/help"
	"github.com/zachgrayio/bkvalidate/src/metrics"
	"github.com/zachgrayio/bkvalidate/src/pipeline"
	"github.com/zachgrayio/bkvalidate/src/process"
	"github.com/zachgrayio/bkvalidate/src/query"
	"github.com/zachgrayio/bkvalidate/src/validate"
	"github.com/zachgrayio/bkvalidate/src/watch"
)

var log = logging.Log

var opts struct {
	Usage string `usage:"bkvalidate checks that the Bazel targets and flags used in CI pipelines exist before anything runs.\n\nArguments that look like flags must come after a -- separator, e.g. bkvalidate flags build -- --config=ci"`

	Verbosity   cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (error, warning, notice, info, debug)"`
	RepoRoot    string        `short:"r" long:"repo_root" env:"BUILD_WORKSPACE_DIRECTORY" description:"Root of the Bazel workspace. Searched for upwards from here."`
	BasePath    string        `long:"base_path" env:"BUILDKITE_VALIDATION_BASE_PATH" description:"Directory to search upwards from for the workspace if no root is given"`
	Package     string        `short:"p" long:"package" description:"Package that relative labels are resolved against. Defaults to the package containing the working directory."`
	Skip        bool          `long:"skip" description:"Disables all validation"`
	WarnOnly    bool          `long:"warn_only" description:"Log validation failures as warnings instead of failing"`
	Tool        string        `long:"tool" description:"Bazel binary to invoke"`
	Config      []string      `short:"c" long:"config" description:"Additional config files to read"`
	PushGateway string        `long:"push_gateway" description:"Prometheus pushgateway to send metrics to"`

	Workspace struct {
	} `command:"workspace" description:"Prints the root of the Bazel workspace"`

	Targets struct {
		Args struct {
			Targets []string `positional-arg-name:"targets" required:"true" description:"Labels to check"`
		} `positional-args:"true" required:"true"`
	} `command:"targets" description:"Checks that the given targets exist in their BUILD files"`

	Flags struct {
		Print bool `long:"print" description:"Print the canonical form of the flags"`
		Args  struct {
			Verb  core.Verb `positional-arg-name:"verb" required:"true" description:"Bazel command the flags are for"`
			Flags []string  `positional-arg-name:"flags" description:"Flags to check"`
		} `positional-args:"true" required:"true"`
	} `command:"flags" description:"Checks flags for a Bazel command by canonicalising them"`

	DryRun struct {
		Args struct {
			Verb core.Verb `positional-arg-name:"verb" required:"true" description:"Bazel command to dry run"`
			Args []string  `positional-arg-name:"args" description:"Arguments to the command"`
		} `positional-args:"true" required:"true"`
	} `command:"dryrun" description:"Runs a Bazel command without building anything and reports what it would do"`

	Query struct {
		Args struct {
			Verb core.Verb `positional-arg-name:"verb" required:"true" description:"Bazel command the arguments are for"`
			Args []string  `positional-arg-name:"args" description:"Arguments to the command"`
		} `positional-args:"true" required:"true"`
	} `command:"query" description:"Checks a Bazel command's targets using bazel query"`

	Pipeline struct {
		Watch       bool `short:"w" long:"watch" description:"Watch the pipeline and the BUILD files it refers to, and revalidate when they change"`
		Query       bool `long:"query" description:"Also check each command with bazel query"`
		DryRun      bool `long:"dry_run" description:"Also dry run each command"`
		Parallelism int  `short:"n" long:"parallelism" default:"4" description:"Number of commands to check at once"`
		Args        struct {
			Files []string `positional-arg-name:"files" required:"true" description:"Pipeline files to check"`
		} `positional-args:"true" required:"true"`
	} `command:"pipeline" description:"Checks every Bazel command in Buildkite pipeline files"`

	Help struct {
		Args struct {
			Topic string `positional-arg-name:"topic" description:"Topic to display help on"`
		} `positional-args:"true"`
	} `command:"help" description:"Displays help about config options and other topics"`
}

// These are set up in main before any subcommand runs.
var (
	config  *core.Configuration
	ctx     *core.ValidationContext
	runner  process.Runner
	metric  *metrics.Metrics
	current string
)

// subCommands maps the name of each subcommand to the function that runs it.
// Each returns true if everything was OK.
var subCommands = map[string]func() bool{
	"help": func() bool {
		topic := opts.Help.Args.Topic
		if topic == "" {
			topic = "topics"
		}
		return help.Help(topic, config)
	},
	"workspace": func() bool {
		if ws := ctx.Workspace(); ws != "" {
			fmt.Println(ws)
			return true
		}
		log.Error("No Bazel workspace found (looked for %s or %s)", core.ModuleFileName, core.WorkspaceFileName)
		return false
	},
	"targets": func() bool {
		v := validate.New(ctx, runner, metric)
		return check(v.Targets(strings.Join(opts.Targets.Args.Targets, " "), current))
	},
	"flags": func() bool {
		v := validate.New(ctx, runner, metric)
		verb := opts.Flags.Args.Verb.String()
		if !check(v.Flags(verb, opts.Flags.Args.Flags)) {
			return false
		} else if opts.Flags.Print {
			canonical, err := v.Canonicalize(verb, opts.Flags.Args.Flags)
			if err != nil {
				log.Warning("%s", err)
			}
			for _, flag := range canonical {
				fmt.Println(flag)
			}
		}
		return true
	},
	"dryrun": func() bool {
		if !ctx.Enabled() {
			return true
		}
		ws := ctx.Workspace()
		if ws == "" {
			log.Error("%s", core.ErrWorkspaceNotFound)
			return false
		}
		result, err := dryrun.New(config, runner, metric).Run(opts.DryRun.Args.Verb, opts.DryRun.Args.Args, ws)
		if result != nil {
			for _, target := range result.ExpandedTargets {
				if kind := result.TargetKinds[target]; kind != "" {
					fmt.Printf("%s %s\n", target, kind)
				} else {
					fmt.Println(target)
				}
			}
		}
		return check(validate.NewReporter(config, metric).Report(validate.KindDryRun, err))
	},
	"query": func() bool {
		if !ctx.Enabled() {
			return true
		}
		ws := ctx.Workspace()
		if ws == "" {
			log.Error("%s", core.ErrWorkspaceNotFound)
			return false
		}
		result, err := query.New(config, runner).Validate(opts.Query.Args.Verb, opts.Query.Args.Args, ws, current)
		for _, label := range result.Labels() {
			fmt.Printf("%s %s\n", label, result[label])
		}
		return check(validate.NewReporter(config, metric).Report(validate.KindQuery, err))
	},
	"pipeline": func() bool {
		if opts.Pipeline.Watch {
			err := watch.Watch(func() []string {
				// Start afresh each time; anything we validated before may have changed.
				if err := ctx.SaveFlagsCache(); err != nil {
					log.Warning("Failed to save flags cache: %s", err)
				}
				ctx = core.NewValidationContext(config)
				files, _ := checkPipelines()
				return files
			}, nil)
			log.Error("%s", err)
			return false
		}
		_, success := checkPipelines()
		return success
	},
}

// checkPipelines checks all the pipeline files. It returns the files that affect the result.
func checkPipelines() ([]string, bool) {
	files := append([]string{}, opts.Pipeline.Args.Files...)
	if ws := ctx.Workspace(); ws != "" {
		files = append(files, core.ConfigFiles(ws)...)
		files = append(files, core.BazelrcFiles(ws)...)
	}
	v := validate.New(ctx, runner, metric)
	checker := pipeline.NewChecker(v)
	checker.Package = current
	checker.Parallelism = opts.Pipeline.Parallelism
	if opts.Pipeline.Query {
		checker.Query = query.New(config, runner)
	}
	if opts.Pipeline.DryRun {
		checker.DryRun = dryrun.New(config, runner, metric)
	}
	success := true
	for _, filename := range opts.Pipeline.Args.Files {
		cmds, err := pipeline.ScanFile(filename)
		if err != nil {
			log.Error("%s: %s", filename, err)
			success = false
			continue
		}
		log.Notice("Found %d Bazel commands in %s", len(cmds), filename)
		if err := checker.Check(cmds); err != nil {
			log.Error("%s: %s", filename, err)
			success = false
		} else {
			log.Notice("%s: all %d commands OK", filename, len(cmds))
		}
		if ws := ctx.Workspace(); ws != "" {
			files = append(files, pipeline.BuildFiles(ws, current, cmds)...)
		}
	}
	return files, success
}

// check logs the error, if there is one, and returns true if there isn't.
func check(err error) bool {
	if err != nil {
		log.Error("%s", err)
		return false
	}
	return true
}

// applyFlags applies the global command-line flags to a config.
func applyFlags(config *core.Configuration) {
	if opts.RepoRoot != "" {
		config.Workspace.Root = fs.ExpandHomePath(opts.RepoRoot)
	}
	if opts.BasePath != "" {
		config.Workspace.BasePath = fs.ExpandHomePath(opts.BasePath)
	}
	if opts.Skip {
		config.Validation.Disable = true
	}
	if opts.WarnOnly {
		config.Validation.WarnOnly = true
	}
	if opts.Tool != "" {
		config.Bazel.Tool = opts.Tool
	}
	if opts.PushGateway != "" {
		config.Metrics.PushGatewayURL = opts.PushGateway
	}
}

// currentPackage returns the package that relative labels should be resolved against.
func currentPackage(ws string) string {
	if opts.Package != "" || ws == "" {
		return strings.Trim(opts.Package, "/")
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Warning("Can't determine working directory: %s", err)
		return ""
	}
	pkg, _ := core.CurrentPackage(ws, wd)
	return pkg
}

func main() {
	command := cli.ParseFlagsOrDie("bkvalidate", &opts)
	cli.InitLogging(opts.Verbosity)

	extraFiles := make([]string, len(opts.Config))
	for i, file := range opts.Config {
		extraFiles[i] = fs.ExpandHomePath(file)
	}
	var err error
	if config, err = core.LoadConfiguration(os.Getenv, applyFlags, extraFiles...); err != nil {
		log.Fatalf("Error reading config files: %s", err)
	}
	ctx = core.NewValidationContext(config)
	if !ctx.Enabled() {
		log.Notice("Validation is disabled")
	}
	current = currentPackage(ctx.Workspace())
	metric = metrics.New()
	runner = metric.InstrumentRunner(process.New())

	success := subCommands[command]()

	if err := ctx.SaveFlagsCache(); err != nil {
		log.Warning("Failed to save flags cache: %s", err)
	}
	if err := metric.Push(config.Metrics.PushGatewayURL, config.Metrics.Job); err != nil {
		log.Warning("%s", err)
	}
	if !success {
		os.Exit(1)
	}
}
