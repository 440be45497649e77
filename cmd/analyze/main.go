// Command analyze prints quick, human-readable heuristics about the level
// files of a campaign. It summarizes dimensions, counts of each cell code,
// how far the enemy spawns are from the player, and how much of the map a
// tank can drive over, and it highlights spawns the player can never reach.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/battlecity/game/engine"
)

// LevelAnalysis is the summary of one level file
type LevelAnalysis struct {
	File         string
	Level        *engine.LevelConfig
	Counts       map[int]int
	PlayerSpawn  engine.Position
	EnemySpawns  []engine.Position
	SpawnDist    []int // Manhattan distance of each enemy spawn from the player
	BaseDist     int   // -1 without a base
	OpenCells    int   // cells a tank could ever occupy
	Reachable    int   // of those, the ones reachable from the player spawn
	Unreachable  []engine.Position
	DensityRatio float64 // solid cells over all cells
}

var codes = []int{
	engine.CodeEmpty, engine.CodePlayerSpawn, engine.CodeEnemySpawn, engine.CodeHomeBase,
	engine.CodeStone, engine.CodeBrick, engine.CodeMirrorNE, engine.CodeMirrorSE,
	engine.CodeWater, engine.CodeForest,
}

func analyzeLevel(path string) (*LevelAnalysis, error) {
	level, err := engine.LoadLevelConfig(path)
	if err != nil {
		return nil, err
	}

	a := &LevelAnalysis{
		File:     filepath.Base(path),
		Level:    level,
		Counts:   make(map[int]int),
		BaseDist: -1,
	}
	for _, code := range codes {
		if n := level.CountCode(code); n > 0 {
			a.Counts[code] = n
		}
	}

	if players := engine.FindCode(level, engine.CodePlayerSpawn); len(players) > 0 {
		a.PlayerSpawn = players[0]
	}
	a.EnemySpawns = engine.FindCode(level, engine.CodeEnemySpawn)
	for _, p := range a.EnemySpawns {
		a.SpawnDist = append(a.SpawnDist, engine.ManhattanDistance(a.PlayerSpawn, p))
	}
	if bases := engine.FindCode(level, engine.CodeHomeBase); len(bases) > 0 {
		a.BaseDist = engine.ManhattanDistance(a.PlayerSpawn, bases[0])
	}

	reach := engine.Reachable(level, a.PlayerSpawn)
	solid := 0
	for y, row := range level.Map {
		for x, code := range row {
			switch code {
			case engine.CodeStone, engine.CodeWater, engine.CodeMirrorNE, engine.CodeMirrorSE, engine.CodeHomeBase:
				solid++
				continue
			case engine.CodeBrick:
				solid++
			}
			a.OpenCells++
			if reach[engine.Position{X: x, Y: y}] {
				a.Reachable++
			}
		}
	}
	a.DensityRatio = float64(solid) / float64(level.Width()*level.Height())
	a.Unreachable = engine.UnreachableSpawns(level)

	return a, nil
}

func printAnalysis(out io.Writer, a *LevelAnalysis) {
	level := a.Level
	fmt.Fprintf(out, "Stage %d: %s\n", level.Level, level.StageName)
	if level.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", level.Description)
	}
	fmt.Fprintf(out, "Grid Size: %d x %d\n", level.Width(), level.Height())
	fmt.Fprintf(out, "Enemies: %d, Powerup within: %d\n", level.EnemyCount, level.PowerupReq)

	fmt.Fprintf(out, "Cells:")
	for _, code := range codes {
		if n, ok := a.Counts[code]; ok {
			fmt.Fprintf(out, " %s=%d", engine.CodeName(code), n)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Solid density: %.0f%%\n", a.DensityRatio*100)

	fmt.Fprintf(out, "Player Spawn: (%d, %d)\n", a.PlayerSpawn.X, a.PlayerSpawn.Y)
	if a.BaseDist >= 0 {
		fmt.Fprintf(out, "Home base distance: %d\n", a.BaseDist)
	} else {
		fmt.Fprintln(out, "No home base")
	}
	if len(a.SpawnDist) > 0 {
		dists := append([]int(nil), a.SpawnDist...)
		sort.Ints(dists)
		fmt.Fprintf(out, "Enemy spawn distances: %v (nearest %d)\n", dists, dists[0])
	}
	fmt.Fprintf(out, "Drivable cells reached: %d/%d\n", a.Reachable, a.OpenCells)

	if len(a.Unreachable) > 0 {
		fmt.Fprintf(out, "WARNING: %d enemy spawns cannot be reached from the player spawn\n", len(a.Unreachable))
		for i, p := range a.Unreachable {
			if i < 5 {
				fmt.Fprintf(out, "   Unreachable: (%d, %d)\n", p.X, p.Y)
			}
		}
		if len(a.Unreachable) > 5 {
			fmt.Fprintf(out, "   ... and %d more\n", len(a.Unreachable)-5)
		}
	} else if len(a.EnemySpawns) > 0 {
		fmt.Fprintln(out, "All enemy spawns are reachable")
	}
}

// analyzeFiles analyzes each file in order. Unreadable files are reported
// and skipped.
func analyzeFiles(out io.Writer, files []string) int {
	analyzed := 0
	for _, file := range files {
		fmt.Fprintf(out, "\n=== Analyzing %s ===\n", filepath.Base(file))
		a, err := analyzeLevel(file)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printAnalysis(out, a)
		analyzed++
	}
	return analyzed
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "summarize campaign levels",
		ArgsUsage: "[level files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "levels",
				Usage:   "directory containing level JSON files, used when no files are given",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
				if err != nil {
					return err
				}
				sort.Strings(files)
			}
			if len(files) == 0 {
				return fmt.Errorf("no level files found")
			}
			analyzeFiles(out, files)
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
