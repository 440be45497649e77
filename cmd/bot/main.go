// Command bot plays Battle City through the REST API of a running server.
// It creates a session, steps it a few ticks at a time with a simple
// hunting strategy and reports how each stage ended.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/logger"
)

// Client talks to the game server
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateSession starts a session at levelID, or at the start of the
// campaign when levelID is empty
func (c *Client) CreateSession(ctx context.Context, levelID string) (*service.SessionInfo, error) {
	var body interface{}
	if levelID != "" {
		body = map[string]string{"level_id": levelID}
	}
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

// Step plays ticks ticks with in held
func (c *Client) Step(ctx context.Context, in engine.Input, ticks int) (*service.StepResult, error) {
	req := struct {
		engine.Input
		Ticks int `json:"ticks"`
	}{in, ticks}
	var result service.StepResult
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/step", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Restart continues a settled session
func (c *Client) Restart(ctx context.Context) (*engine.View, error) {
	var resp struct {
		View *engine.View `json:"view"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/restart", nil, &resp); err != nil {
		return nil, err
	}
	return resp.View, nil
}

// StageResult is how one stage ended
type StageResult struct {
	Level     int
	StageName string
	Victory   bool
	Ticks     int
	Lives     int
}

// Options bound a bot run
type Options struct {
	Level         string
	Stages        int // stages to play before stopping
	MaxTicks      int // per stage
	DecisionTicks int
}

// Play runs the bot until it has played opts.Stages stages, lost, or ran
// out of ticks on a stage
func Play(ctx context.Context, c *Client, strategy Strategy, opts Options, log logrus.FieldLogger) ([]StageResult, error) {
	if opts.DecisionTicks < 1 {
		opts.DecisionTicks = engine.DefaultRules().PlayerMoveCadence
	}
	if opts.Stages < 1 {
		opts.Stages = 1
	}

	info, err := c.CreateSession(ctx, opts.Level)
	if err != nil {
		return nil, err
	}
	log = log.WithField("session", info.ID)
	log.WithField("stage", info.StageName).Info("session created")

	view := info.View
	var results []StageResult
	ticks := 0
	for len(results) < opts.Stages {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if ticks >= opts.MaxTicks {
			return results, fmt.Errorf("stage %d not settled after %d ticks", view.HUD.Level, ticks)
		}

		result, err := c.Step(ctx, strategy.Next(view), opts.DecisionTicks)
		if err != nil {
			return results, err
		}
		ticks += result.Ticks
		view = result.View
		if !result.Settled {
			continue
		}

		stage := StageResult{
			Level:     view.HUD.Level,
			StageName: view.HUD.StageName,
			Victory:   result.Victory,
			Ticks:     ticks,
			Lives:     view.HUD.Lives,
		}
		results = append(results, stage)
		log.WithFields(logrus.Fields{
			"level":   stage.Level,
			"victory": stage.Victory,
			"ticks":   stage.Ticks,
		}).Info("stage settled")

		if !stage.Victory || len(results) == opts.Stages {
			break
		}
		next, err := c.Restart(ctx)
		if err != nil {
			return results, err
		}
		view = *next
		ticks = 0
	}
	return results, nil
}

func printResults(out io.Writer, results []StageResult) {
	for _, r := range results {
		outcome := "GAME OVER"
		if r.Victory {
			outcome = "CLEAR"
		}
		fmt.Fprintf(out, "Stage %d %-12s %-9s ticks=%d lives=%d\n", r.Level, r.StageName, outcome, r.Ticks, r.Lives)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "play Battle City through the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "server base URL",
				Sources: cli.EnvVars("BATTLECITY_URL"),
			},
			&cli.StringFlag{Name: "level", Usage: "level to start from"},
			&cli.IntFlag{Name: "stages", Value: 1, Usage: "stages to play"},
			&cli.IntFlag{Name: "max-ticks", Value: 20000, Usage: "give up on a stage after this many ticks"},
			&cli.IntFlag{Name: "decision-ticks", Value: 4, Usage: "ticks played per decision"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			results, err := Play(ctx, NewClient(cmd.String("url")), HunterStrategy{}, Options{
				Level:         cmd.String("level"),
				Stages:        int(cmd.Int("stages")),
				MaxTicks:      int(cmd.Int("max-ticks")),
				DecisionTicks: int(cmd.Int("decision-ticks")),
			}, logger.Log)
			printResults(out, results)
			return err
		},
	}
}

func main() {
	logger.Init()
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
