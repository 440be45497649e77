// Command validate checks the level files of a campaign directory. It checks:
//   - JSON structure, map shape and cell codes
//   - Exactly one player spawn, and spawn points for the enemy quota
//   - Rules ranges (cadences, delays, buff chance)
//   - At least one enemy, since a stage without foes can never be won
//   - Reachability: enemy spawns a tank from the player spawn can drive to
//   - Stage numbers ascending in file order
//
// It prints a report per file and exits non-zero if any level is invalid.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/battlecity/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Warnings do not make a level invalid.
type ValidationResult struct {
	File     string
	Valid    bool
	Level    *engine.LevelConfig
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateLevel loads and validates a single level file
func validateLevel(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	level, err := engine.ParseLevelConfig(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	result.Level = level

	if level.EnemyCount == 0 {
		result.fail("enemy_count is 0: the stage can never be won")
	}

	spawns := level.CountCode(engine.CodeEnemySpawn)
	if unreachable := engine.UnreachableSpawns(level); len(unreachable) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d/%d enemy spawns cannot be reached by driving from the player spawn", len(unreachable), spawns))
		for _, p := range unreachable {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Unreachable spawn at (%d,%d)", p.X, p.Y))
		}
	}

	if level.CountCode(engine.CodeHomeBase) == 0 {
		result.Warnings = append(result.Warnings, "No home base (3): the stage can only be lost by running out of lives")
	}

	rules := level.EffectiveRules()
	if level.PowerupReq > 0 && level.PowerupReq <= rules.StartDelay {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("powerup_req %d ends before play starts at tick %d", level.PowerupReq, rules.StartDelay))
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("Stage %d: %s", level.Level, level.StageName),
			fmt.Sprintf("Grid: %dx%d", level.Width(), level.Height()),
			fmt.Sprintf("Enemies: %d from %d spawn(s)", level.EnemyCount, spawns),
			fmt.Sprintf("Lives: %d", rules.Lives),
		)
	}

	return result
}

// validateDir validates every *.json level in dir in campaign order and
// writes the report to out. It returns whether all levels are valid.
func validateDir(dir string, out io.Writer) (bool, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return false, fmt.Errorf("error finding level files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no level files in %s", dir)
	}
	sort.Strings(files)

	allValid := true
	lastStage := 0
	for _, file := range files {
		result := validateLevel(file)
		if result.Level != nil {
			if result.Level.Level < lastStage {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Stage %d comes after stage %d in file order", result.Level.Level, lastStage))
			}
			lastStage = result.Level.Level
		}

		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(out, "VALID")
			for _, info := range result.Info {
				fmt.Fprintln(out, "  ✓ "+info)
			}
		} else {
			fmt.Fprintln(out, "INVALID")
			allValid = false
			for _, e := range result.Errors {
				fmt.Fprintln(out, "  ✗ "+e)
			}
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(out, "  ! "+w)
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintf(out, "All %d levels are valid\n", len(files))
	} else {
		fmt.Fprintln(out, "Some levels have errors")
	}
	return allValid, nil
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check the level files of a campaign",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "levels",
				Usage:   "directory containing level JSON files",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := validateDir(cmd.String("dir"), out)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
