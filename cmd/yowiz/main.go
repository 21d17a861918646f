package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sushiljain1989/yeoman-ui/pkg/console"
	"github.com/sushiljain1989/yeoman-ui/pkg/flow"
	"github.com/sushiljain1989/yeoman-ui/pkg/logging"
	wizmcp "github.com/sushiljain1989/yeoman-ui/pkg/mcp"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/runner"
	"github.com/sushiljain1989/yeoman-ui/pkg/serve"
	"github.com/sushiljain1989/yeoman-ui/pkg/session"
	"github.com/sushiljain1989/yeoman-ui/pkg/tui"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagWorkdir string
	flagPlain   bool
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "yowiz",
	Short: "Interactive scaffolding wizard with back-navigation",
	Long:  "yowiz — drives question/answer wizard flows on top of forward-only generators, with record/replay back-navigation.",
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run [flow.yaml]",
	Short: "Run a wizard flow interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	fl, errs := flow.ValidateFile(args[0])
	if flow.HasErrors(errs) {
		return fmt.Errorf("validation failed: %v", errs[0])
	}
	eng := flow.NewEngine(fl)

	if flagPlain {
		return runPlain(eng, logger)
	}
	return runTUI(eng, logger)
}

// runTUI drives the flow through the Bubble Tea front-end.
func runTUI(eng *flow.Engine, logger *slog.Logger) error {
	ui := tui.New(eng.Name(), eng.Description())
	orch := session.New(ui, prompt.NewRegistry(), logger)
	ui.Back = orch.GoBack
	ui.Evaluate = orch.EvaluateBehavior

	sup := runner.New(eng, orch, runner.Config{
		Workdir: flagWorkdir,
		UI:      ui,
		Logger:  logger,
		OnDone: func(out runner.Outcome) {
			ui.Finish(out.OK, out.Message, out.Workdir)
		},
	})

	ctx := context.Background()
	return ui.Run(func() { sup.Start(ctx) })
}

// runPlain drives the flow through the readline front-end.
func runPlain(eng *flow.Engine, logger *slog.Logger) error {
	ui, err := console.New()
	if err != nil {
		return err
	}
	defer ui.Close()

	orch := session.New(ui, prompt.NewRegistry(), logger)
	ui.Back = orch.GoBack
	ui.Evaluate = orch.EvaluateBehavior

	done := make(chan runner.Outcome, 1)
	sup := runner.New(eng, orch, runner.Config{
		Workdir: flagWorkdir,
		UI:      ui,
		Logger:  logger,
		OnDone:  func(out runner.Outcome) { done <- out },
	})

	sup.Start(context.Background())
	out := <-done
	if !out.OK {
		return fmt.Errorf("%s failure: %s", out.Kind, out.Message)
	}
	fmt.Printf("Done. Output written to %s\n", out.Workdir)
	return nil
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC server for a remote wizard UI (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve.New(os.Stdin, os.Stdout, newLogger()).Run()
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server exposing wizard tools (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.ServeStdio(wizmcp.NewServer(version, newLogger()))
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [flow.yaml]",
	Short: "Validate a wizard flow YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fl, errs := flow.ValidateFile(args[0])
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			if flow.HasErrors(errs) {
				return fmt.Errorf("%d validation error(s)", len(errs))
			}
		}
		fmt.Printf("✓ %s is valid (%d steps)\n", fl.Meta.Name, len(fl.Steps))
		return nil
	},
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the wizard flow JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := flow.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("yowiz %s (%s)\n", version, commit)
	},
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}

func init() {
	runCmd.Flags().StringVarP(&flagWorkdir, "workdir", "w", ".", "working directory for generated output")
	runCmd.Flags().BoolVar(&flagPlain, "plain", false, "use the plain readline prompt instead of the TUI")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd, serveCmd, mcpCmd, validateCmd, schemaCmd, versionCmd)
}
