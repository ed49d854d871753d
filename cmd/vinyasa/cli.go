package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/vinyasa/internal/errors"
	"github.com/hpungsan/vinyasa/internal/ops"
	"github.com/hpungsan/vinyasa/internal/pose"
	"github.com/hpungsan/vinyasa/internal/web"
)

// maxStdinBytes bounds pose descriptions read from stdin.
const maxStdinBytes = 64 * 1024

// newCLIApp creates the CLI application with all commands. d may be nil
// when only help or version output is needed.
func newCLIApp(d *ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "vinyasa",
		Usage:   "Yoga sequence composer",
		Version: Version,
		Commands: []*cli.Command{
			generateCmd(d),
			reviseCmd(d),
			durationCmd(d),
			moveCmd(d),
			replaceCmd(d),
			removeStepCmd(d),
			showCmd(d),
			listCmd(d),
			deleteCmd(d),
			purgeCmd(d),
			insightsCmd(d),
			posesCmd(d),
			poseCmd(d),
			blocksCmd(d),
			blockCmd(d),
			catalogCmd(d),
			serveCmd(d),
			checkCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// expectedVersionFlag is shared by every command that edits a sequence.
func expectedVersionFlag() cli.Flag {
	return &cli.Int64Flag{Name: "expected-version", Aliases: []string{"V"}, Usage: "Fail with CONFLICT unless the sequence is at this version"}
}

// requireID returns the first positional argument as a sequence id.
func requireID(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", outputError(errors.NewInvalidRequest("sequence id is required"))
	}
	return c.Args().First(), nil
}

// generateCmd creates the generate command.
func generateCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a new sequence through the oracle",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "duration", Aliases: []string{"d"}, Required: true, Usage: "Class length in minutes"},
			&cli.StringFlag{Name: "difficulty", Value: "Beginner", Usage: "Beginner|Intermediate|Expert"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Sequence name (derived when empty)"},
			&cli.StringFlag{Name: "focus-poses", Usage: "Comma-separated pose ids that must be included"},
			&cli.StringFlag{Name: "focus-areas", Usage: "Comma-separated focus areas (e.g. hips,balance)"},
			&cli.StringFlag{Name: "features", Usage: "Comma-separated feature flags"},
		},
		Action: func(c *cli.Context) error {
			focus, err := parseIDs(c.String("focus-poses"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			output, err := ops.Generate(c.Context, d, ops.GenerateInput{
				Name:            c.String("name"),
				FocusPoses:      focus,
				Duration:        c.Int("duration"),
				Difficulty:      c.String("difficulty"),
				FocusAreas:      parseList(c.String("focus-areas")),
				EnabledFeatures: parseList(c.String("features")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// reviseCmd creates the revise command.
func reviseCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "revise",
		Usage:     "Reorder a sequence through the oracle",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "suggestion", Aliases: []string{"s"}, Usage: "Improvement suggestion to apply"},
			&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "Custom instruction (overrides --suggestion)"},
			expectedVersionFlag(),
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.Revise(c.Context, d, ops.ReviseInput{
				ID:              id,
				ExpectedVersion: c.Int64("expected-version"),
				Suggestion:      c.String("suggestion"),
				CustomPrompt:    c.String("prompt"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// durationCmd creates the duration command.
func durationCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "duration",
		Usage:     "Fit a sequence to a new class length",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "minutes", Aliases: []string{"m"}, Required: true, Usage: "New class length in minutes"},
			expectedVersionFlag(),
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.ChangeDuration(c.Context, d, ops.DurationInput{
				ID:              id,
				ExpectedVersion: c.Int64("expected-version"),
				Duration:        c.Int("minutes"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// moveCmd creates the move command.
func moveCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move one pose to another position",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "from", Required: true, Usage: "Current step index"},
			&cli.IntFlag{Name: "to", Required: true, Usage: "Destination step index"},
			expectedVersionFlag(),
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.Move(c.Context, d, ops.MoveInput{
				ID:              id,
				ExpectedVersion: c.Int64("expected-version"),
				From:            c.Int("from"),
				To:              c.Int("to"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// replaceCmd creates the replace command.
func replaceCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "replace",
		Usage:     "Swap the pose at a step for another catalog pose",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Required: true, Usage: "Step index"},
			&cli.Int64Flag{Name: "pose", Required: true, Usage: "Replacement pose id"},
			expectedVersionFlag(),
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.ReplaceStep(c.Context, d, ops.ReplaceStepInput{
				ID:              id,
				ExpectedVersion: c.Int64("expected-version"),
				Index:           c.Int("index"),
				PoseID:          pose.ID(c.Int64("pose")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// removeStepCmd creates the remove-step command.
func removeStepCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "remove-step",
		Usage:     "Remove a single step",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Required: true, Usage: "Step index"},
			expectedVersionFlag(),
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.RemoveStep(c.Context, d, ops.RemoveStepInput{
				ID:              id,
				ExpectedVersion: c.Int64("expected-version"),
				Index:           c.Int("index"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a stored sequence",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted sequences"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.Fetch(c.Context, d, ops.FetchInput{
				ID:             id,
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored sequences",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted sequences"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, d.DB, ops.ListInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a sequence",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.Delete(c.Context, d.DB, ops.DeleteInput{ID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted sequences and flow blocks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, d.DB, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// insightsCmd creates the insights command.
func insightsCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "insights",
		Usage:     "Fetch improvement suggestions and pose alternatives",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := ops.Insights(c.Context, d, ops.InsightsInput{ID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// posesCmd creates the poses command.
func posesCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "poses",
		Usage: "List catalog poses",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "difficulty", Usage: "Filter by difficulty"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Filter by category"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match english or sanskrit names"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListPoses(c.Context, d.DB, ops.ListPosesInput{
				Difficulty: c.String("difficulty"),
				Category:   c.String("category"),
				Query:      c.String("query"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// poseCmd creates the pose command group.
func poseCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "pose",
		Usage: "Manage user-defined poses",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a pose (reads a markdown description from stdin when piped)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "English name"},
					&cli.StringFlag{Name: "sanskrit", Usage: "Sanskrit name"},
					&cli.StringFlag{Name: "difficulty", Required: true, Usage: "Beginner|Intermediate|Expert"},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category (e.g. Balance)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.StorePoseInput{
						Name:         c.String("name"),
						SanskritName: c.String("sanskrit"),
						Difficulty:   c.String("difficulty"),
						Category:     c.String("category"),
					}
					if stdinHasData() {
						text, err := readStdin(maxStdinBytes)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.Description = text
					}

					output, err := ops.StorePose(c.Context, d.DB, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// blocksCmd creates the blocks command.
func blocksCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "blocks",
		Usage: "List flow blocks",
		Action: func(c *cli.Context) error {
			output, err := ops.ListFlowBlocks(c.Context, d.DB)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// blockCmd creates the block command group: definitions and their use in sequences.
func blockCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "block",
		Usage: "Manage flow blocks and splice them into sequences",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store a flow block definition",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Block name"},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Warm-up, Cool Down or a main-section label"},
					&cli.StringFlag{Name: "poses", Required: true, Usage: "Comma-separated pose ids"},
					&cli.StringSliceFlag{Name: "timing", Usage: "Timing per pose (repeatable)"},
					&cli.StringSliceFlag{Name: "transition", Usage: "Transition between poses (repeatable)"},
					&cli.IntFlag{Name: "repetitions", Aliases: []string{"r"}, Value: 1, Usage: "Times the block repeats"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
				},
				Action: func(c *cli.Context) error {
					ids, err := parseIDs(c.String("poses"))
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					output, err := ops.StoreFlowBlock(c.Context, d.DB, ops.StoreFlowBlockInput{
						Name:        c.String("name"),
						Category:    c.String("category"),
						Poses:       ids,
						Timing:      c.StringSlice("timing"),
						Transitions: c.StringSlice("transition"),
						Repetitions: c.Int("repetitions"),
						Mode:        ops.StoreMode(c.String("mode")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Soft-delete a flow block",
				ArgsUsage: "<block-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("flow block id is required"))
					}
					output, err := ops.DeleteFlowBlock(c.Context, d.DB, ops.DeleteFlowBlockInput{ID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "insert",
				Usage:     "Splice a flow block into a sequence",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "block-id", Usage: "Flow block id"},
					&cli.StringFlag{Name: "block", Aliases: []string{"b"}, Usage: "Flow block name"},
					&cli.StringFlag{Name: "section", Value: "main", Usage: "warm-up|main|peak|cool-down"},
					&cli.IntFlag{Name: "position", Usage: "Insert at this step index (overrides --section)"},
					&cli.IntFlag{Name: "repetitions", Aliases: []string{"r"}, Usage: "Override the block's repetition count"},
					expectedVersionFlag(),
				},
				Action: func(c *cli.Context) error {
					id, err := requireID(c)
					if err != nil {
						return err
					}
					input := ops.InsertBlockInput{
						ID:              id,
						ExpectedVersion: c.Int64("expected-version"),
						FlowBlockID:     c.String("block-id"),
						FlowBlockName:   c.String("block"),
						Section:         c.String("section"),
						Repetitions:     c.Int("repetitions"),
					}
					if c.IsSet("position") {
						pos := c.Int("position")
						input.Position = &pos
					}

					output, err := ops.InsertBlock(c.Context, d, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove the flow block starting at a position",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "position", Required: true, Usage: "First step of the block"},
					expectedVersionFlag(),
				},
				Action: func(c *cli.Context) error {
					id, err := requireID(c)
					if err != nil {
						return err
					}
					output, err := ops.RemoveBlock(c.Context, d, ops.RemoveBlockInput{
						ID:              id,
						ExpectedVersion: c.Int64("expected-version"),
						Position:        c.Int("position"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// catalogCmd creates the catalog command group.
func catalogCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Import user poses and flow blocks",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a YAML catalog file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Catalog file path (.yaml or .yml)"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip|replace"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ImportCatalog(c.Context, d.DB, ops.ImportInput{
						Path: c.String("path"),
						Mode: ops.ImportMode(c.String("mode")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Usage: "Port (default from config: 8420)"},
		},
		Action: func(c *cli.Context) error {
			bind := d.Config.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := d.Config.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			srv, err := web.NewServer(d, Version, bind, port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, d.Logger)
		},
	}
}

// checkCmd creates the check command.
func checkCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify every stored sequence decodes and matches the catalog",
		Action: func(c *cli.Context) error {
			output, err := ops.Check(c.Context, d)
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(output); err != nil {
				return err
			}
			if !output.Healthy {
				return cli.Exit(fmt.Sprintf("[CHECK] %d of %d sequences have problems", len(output.Issues), output.Checked), 2)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	ve := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", ve.Code, ve.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxBytes from stdin.
func readStdin(maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("stdin exceeds %d bytes", maxBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseList splits a comma-separated string, dropping blanks.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseIDs parses a comma-separated list of pose ids.
func parseIDs(s string) ([]pose.ID, error) {
	parts := parseList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]pose.ID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pose id %q", p)
		}
		ids = append(ids, pose.ID(n))
	}
	return ids, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
