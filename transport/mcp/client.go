package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Battle City",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Battle City - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Destroy every enemy tank of the stage while keeping your tank (and your
home base) alive. Winning a stage moves the session on to the next one.

AVAILABLE TOOLS:
- create_session: Create a new session, optionally at a level
- list_sessions / get_session: Inspect sessions
- view: Current grid and HUD as text
- step: Play one or more ticks with an input
- set_input: Set the input a real-time runner keeps playing
- restart: Continue after a settled stage, or replay the current one
- start_runner / stop_runner: Real-time play
- list_levels: The campaign
- describe_cell: What occupies one cell
- game_instructions: Rules and legend`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// inputProperties are the fields of one tick's input
func inputProperties() map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionIDProperty(),
		"direction": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"up", "down", "left", "right"},
			"description": "Direction to drive (omit to stand still)",
		},
		"fire": map[string]interface{}{
			"type":        "boolean",
			"description": "Hold the trigger",
		},
		"restart": map[string]interface{}{
			"type":        "boolean",
			"description": "Request a respawn or, once settled, continue",
		},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session, starting the campaign or a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level to start at, from list_levels (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "view",
		Description: "Get the current grid and HUD of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleView)

	stepProps := inputProperties()
	stepProps["ticks"] = map[string]interface{}{
		"type":        "integer",
		"description": fmt.Sprintf("Ticks to play with this input (1-%d, default 1)", engine.MaxStepTicks),
	}
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Advance the session by one or more ticks holding the given input",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: stepProps,
			Required:   []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_input",
		Description: "Set the input a running session plays every tick",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: inputProperties(),
			Required:   []string{"session_id"},
		},
	}, c.handleSetInput)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "restart",
		Description: "Continue a finished stage (next level, or back to the first after game over), or replay the current one",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleRestart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_runner",
		Description: "Play the session in real time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"rate": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Ticks per second (default %d)", service.DefaultTickRate),
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStartRunner)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_runner",
		Description: "Stop real-time play of the session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleStopRunner)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List the campaign levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get game instructions, rules and the grid legend",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe what occupies a cell of the grid, terrain and bullets both",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell to describe (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell to describe (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// inputArgs reads the input fields shared by step and set_input
func inputArgs(args map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{}
	if direction, _ := args["direction"].(string); direction != "" {
		body["direction"] = direction
	}
	if fire, _ := args["fire"].(bool); fire {
		body["fire"] = true
	}
	if restart, _ := args["restart"].(bool); restart {
		body["restart"] = true
	}
	return body
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	levelID, _ := args["level_id"].(string)

	body := map[string]string{}
	if levelID != "" {
		body["level_id"] = levelID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\n\n%s", session.ID, formatSessionInfo(&session))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		running := ""
		if s.Running {
			running = ", running"
		}
		fmt.Fprintf(&b, "- %s (Stage %d %s%s, Created: %s)\n",
			s.ID, s.View.HUD.Level, s.StageName, running, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s", sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var view engine.View
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s/view", sessionID), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(view.Text()), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	body := inputArgs(args)
	if ticks, ok := intArg(args, "ticks"); ok {
		body["ticks"] = ticks
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/step", sessionID), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleSetInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	body := inputArgs(args)
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/input", sessionID), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Input for %s set to %s", sessionID, formatInput(body))), nil
}

func (c *Client) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var response struct {
		Message string       `json:"message"`
		View    *engine.View `json:"view"`
	}
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/restart", sessionID), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := response.Message
	if response.View != nil {
		result += "\n\n" + response.View.Text()
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStartRunner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	body := map[string]int{}
	if rate, ok := intArg(args, "rate"); ok {
		body["rate"] = rate
	}

	var response struct {
		Rate int `json:"rate"`
	}
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/run", sessionID), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s running at %d ticks/s", sessionID, response.Rate)), nil
}

func (c *Client) handleStopRunner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	if err := c.apiCall(ctx, "DELETE", fmt.Sprintf("/api/sessions/%s/run", sessionID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s stopped", sessionID)), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.LevelInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Campaign Levels:\n\n")
	for _, level := range levels {
		fmt.Fprintf(&b, "%d. %s - Stage %d %s\n   Grid: %dx%d, Enemies: %d\n",
			level.Index+1, level.LevelID, level.Level, level.StageName, level.Width, level.Height, level.EnemyCount)
		if level.Description != "" {
			fmt.Fprintf(&b, "   %s\n", level.Description)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	var info engine.CellInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s/cells/%d/%d", sessionID, x, y), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Battle City - Instructions

GAME OBJECTIVE:
Destroy every enemy tank of the stage. Enemies enter from their spawn points
a few at a time until the stage's quota is used up. You lose a life when your
tank is destroyed, and the game is over when no lives remain or the home base
is shot.

TICKS:
The world advances in ticks. Each tick plays one input: an optional
direction, whether the trigger is held, and a restart request. Your tank
moves one cell per move cadence and turns before it moves. Only one of your
bullets can be in flight at a time.

GRID LEGEND:
- P or < > ^ v  your tank (arrow shows facing)
- E             enemy tank
- X             armored enemy tank (takes two hits)
- *             bullet
- #             stone (indestructible)
- B             brick (destroyed by hits)
- H             home base
- / \           mirrors (deflect bullets)
- ~             water (blocks tanks, slows bullets)
- %             forest (hides what is under it)
- .             empty ground

BULLETS:
Bullets travel in a straight line, bounce off mirrors, and cancel each other
when they meet. Enemy bullets pass through other enemies.

POWERUP:
Destroying half of the stage's enemies within its time limit grants one
extra life.

FLOW:
1. create_session, then view to see the map.
2. step with a direction and fire, several ticks at a time.
3. After STAGE CLEAR or GAME OVER, the world settles; call restart to go on.

MOVEMENT COMMANDS:
- direction: up, down, left, right
- fire: true to shoot in the facing direction
- restart: respawn after being destroyed`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	if session.LevelName != "" {
		fmt.Fprintf(&b, "Started at: %s\n", session.LevelName)
	}
	fmt.Fprintf(&b, "Campaign position: %d\n", session.LevelIndex+1)
	fmt.Fprintf(&b, "Run: %s\n", session.RunID)
	if session.Running {
		fmt.Fprintf(&b, "Running with input %s\n", formatInput(map[string]interface{}{
			"direction": string(session.Input.Direction),
			"fire":      session.Input.Fire,
		}))
	}
	fmt.Fprintf(&b, "Created: %s\n\n", session.CreatedAt.Format(time.RFC3339))
	b.WriteString(session.View.Text())
	return b.String()
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Played %d tick(s)\n", result.Ticks)

	switch {
	case result.Victory:
		b.WriteString("VICTORY! ")
	case result.GameOver:
		b.WriteString("GAME OVER. ")
	}
	if result.Settled {
		b.WriteString("The stage has settled; call restart to continue.\n")
	} else if result.Victory || result.GameOver {
		b.WriteString("\n")
	}

	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		for _, e := range result.Events {
			b.WriteString("  " + formatEvent(e) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(result.View.Text())
	return b.String()
}

func formatEvent(e engine.Event) string {
	s := fmt.Sprintf("t%d %s at (%d,%d) by %s", e.Tick, e.Type, e.Pos.X, e.Pos.Y, e.Owner.Label())
	if e.Kind != "" {
		s += fmt.Sprintf(" [%s]", e.Kind)
	}
	return s
}

func formatInput(body map[string]interface{}) string {
	parts := []string{}
	if d, _ := body["direction"].(string); d != "" {
		parts = append(parts, d)
	}
	if fire, _ := body["fire"].(bool); fire {
		parts = append(parts, "fire")
	}
	if restart, _ := body["restart"].(bool); restart {
		parts = append(parts, "restart")
	}
	if len(parts) == 0 {
		return "idle"
	}
	return strings.Join(parts, "+")
}

func formatCellInfo(info *engine.CellInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d): %s\n", info.Position.X, info.Position.Y, info.Kind)
	if info.Sprite != nil {
		fmt.Fprintf(&b, "Occupant: %s '%c'", info.Sprite.Kind, engine.Glyph(*info.Sprite))
		if info.Sprite.Owner != "" {
			fmt.Fprintf(&b, " owner %s", info.Sprite.Owner)
		}
		if info.Sprite.HP > 0 {
			fmt.Fprintf(&b, " hp %d", info.Sprite.HP)
		}
		b.WriteString("\n")
	}
	if info.Overlay != nil {
		fmt.Fprintf(&b, "Overlay: %s '%c'\n", info.Overlay.Kind, engine.Glyph(*info.Overlay))
	}
	if info.Forest {
		b.WriteString("Covered by forest\n")
	}
	return b.String()
}
