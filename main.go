// Command battlecity runs the Battle City game server.
//
// Subcommands:
//  1. "serve" (default) runs the HTTP server: REST API, WebSocket view
//     stream and an /mcp HTTP endpoint, optionally behind an ngrok tunnel
//  2. "mcp" runs an MCP stdio server, reusing a server on localhost or
//     starting an internal one
//  3. "play" plays the campaign in the terminal with synthesized sound
//
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/battlecity/api"
	"github.com/wricardo/battlecity/audio"
	"github.com/wricardo/battlecity/game/config"
	"github.com/wricardo/battlecity/game/service"
	"github.com/wricardo/battlecity/game/session"
	"github.com/wricardo/battlecity/logger"
	"github.com/wricardo/battlecity/terminal"
	"github.com/wricardo/battlecity/transport/mcp"
	"github.com/wricardo/battlecity/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Battle City Server"
)

const (
	sessionMaxAge   = 24 * time.Hour
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
)

// services is everything the server modes share
type services struct {
	levels      *config.Manager
	sessions    *session.Manager
	persistence *session.FilePersistence
	game        service.GameService
}

// initializeServices wires the level and session managers and the game
// service. Persisted sessions are loaded back into memory.
func initializeServices(levelsDir, sessionsDir string) (*services, error) {
	levels, err := config.NewManager(levelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	factory := service.LevelEngineFactory(levels, logger.Log.WithField("component", "engine"))
	persistence, err := session.NewFilePersistence(sessionsDir, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessions := session.NewManagerWithPersistence(factory, persistence)
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Log.WithError(err).Warn("failed to load persisted sessions")
	}

	return &services{
		levels:      levels,
		sessions:    sessions,
		persistence: persistence,
		game:        service.NewGameService(sessions, levels),
	}, nil
}

// startMaintenance prunes expired sessions and sessions whose file was
// deleted, until ctx is cancelled
func (s *services) startMaintenance(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.sessions.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
					logger.Log.WithField("count", removed).Info("cleaned up expired sessions")
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pruneOrphans()
			}
		}
	}()
}

// pruneOrphans drops in-memory sessions whose persisted file is gone
func (s *services) pruneOrphans() int {
	pruned := 0
	for _, sess := range s.sessions.List() {
		if !s.persistence.Exists(sess.ID) {
			if err := s.sessions.DeleteFromMemory(sess.ID); err == nil {
				pruned++
				logger.Log.WithField("session", sess.ID).Info("pruned session from memory (file deleted)")
			}
		}
	}
	return pruned
}

// shutdown stops every runner and saves the sessions
func (s *services) shutdown() {
	s.sessions.StopAll()
	if err := s.sessions.SaveAllSessions(); err != nil {
		logger.Log.WithError(err).Warn("failed to save sessions")
	}
}

// newMainRouter mounts the API server and the /mcp HTTP endpoint
func newMainRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

func levelsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "levels-dir",
		Value:   "levels",
		Usage:   "directory containing level JSON files",
		Sources: cli.EnvVars("LEVELS_DIR"),
	}
}

func sessionsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "sessions-dir",
		Value:   "sessions",
		Usage:   "directory for persisted sessions",
		Sources: cli.EnvVars("SESSIONS_DIR"),
	}
}

func portFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   8080,
		Usage:   "HTTP server port",
		Sources: cli.EnvVars("PORT"),
	}
}

func hostFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "host",
		Value:   "localhost",
		Usage:   "HTTP server host",
		Sources: cli.EnvVars("HOST"),
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		portFlag(),
		hostFlag(),
		levelsFlag(),
		sessionsFlag(),
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "expose the server through an ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "custom ngrok domain",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "battlecity",
		Usage:   AppName,
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp"},
				Usage:   "run an MCP stdio server",
				Flags:   []cli.Flag{portFlag(), levelsFlag(), sessionsFlag()},
				Action:  runStdioMCP,
			},
			{
				Name:  "play",
				Usage: "play the campaign in the terminal",
				Flags: []cli.Flag{
					levelsFlag(),
					&cli.StringFlag{
						Name:  "level",
						Usage: "level to start from (default: first campaign level)",
					},
					&cli.IntFlag{
						Name:    "tick-rate",
						Value:   service.DefaultTickRate,
						Usage:   "ticks per second",
						Sources: cli.EnvVars("TICK_RATE"),
					},
					&cli.BoolFlag{
						Name:  "mute",
						Usage: "start without sound",
					},
					&cli.StringFlag{
						Name:    "log-file",
						Value:   "battlecity.log",
						Usage:   "log destination while the screen is in use",
						Sources: cli.EnvVars("LOG_FILE"),
					},
				},
				Action: runPlay,
			},
		},
	}
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel
// serving the same router. It returns after a shutdown signal.
func runServe(ctx context.Context, cmd *cli.Command) error {
	svc, err := initializeServices(cmd.String("levels-dir"), cmd.String("sessions-dir"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize services: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.startMaintenance(ctx)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newMainRouter(api.NewServer(svc.game, hub), mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Log.WithFields(logrus.Fields{
			"addr":      addr,
			"api":       fmt.Sprintf("http://%s/api", addr),
			"websocket": fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp":       fmt.Sprintf("http://%s/mcp", addr),
		}).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Info("shutting down")
	case err := <-serveErr:
		logger.Log.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("HTTP server shutdown error")
	}
	stop()
	svc.shutdown()

	wg.Wait()
	logger.Log.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		logger.Log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	logger.Log.Info("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	url := tun.URL()
	logger.Log.WithFields(logrus.Fields{
		"url":       url,
		"api":       url + "/api",
		"websocket": url + "/ws?session=<session_id>",
		"mcp":       url + "/mcp",
	}).Info("ngrok tunnel established")

	go func() {
		<-ctx.Done()
		tun.Close()
	}()
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Log.WithError(err).Warn("ngrok server error")
	}
	logger.Log.Info("ngrok tunnel closed")
}

// externalServerURL returns the base URL of a server already running on
// localhost at port, or "" when none answers
func externalServerURL(port int) string {
	url := fmt.Sprintf("http://localhost:%d", port)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url + "/health")
	if err != nil {
		return ""
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	return url
}

// runStdioMCP runs an MCP stdio server. It reuses a server on localhost if
// one answers; otherwise it serves the API itself on a random loopback port.
// Logs go to stderr since stdout carries the protocol.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := externalServerURL(int(cmd.Int("port")))
	if baseURL != "" {
		logger.Log.WithField("url", baseURL).Info("using external API server for MCP")
	} else {
		svc, err := initializeServices(cmd.String("levels-dir"), cmd.String("sessions-dir"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to initialize services: %v", err), 1)
		}
		defer svc.shutdown()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to get available port: %v", err), 1)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		hub := websocket.NewHub()
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Log.WithField("url", baseURL).Info("started internal API server for MCP")
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Log.Info("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return cli.Exit(fmt.Sprintf("MCP stdio server error: %v", err), 1)
	}
	return nil
}

// runPlay plays the campaign on the terminal. Logs go to a file so they do
// not tear the screen.
func runPlay(ctx context.Context, cmd *cli.Command) error {
	logFile, err := os.OpenFile(filepath.Clean(cmd.String("log-file")), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.InitWithOutput(io.Discard)
	} else {
		defer logFile.Close()
		logger.InitWithOutput(logFile)
	}

	levels, err := config.NewManager(cmd.String("levels-dir"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load levels: %v", err), 1)
	}
	factory := service.LevelEngineFactory(levels, logger.Log.WithField("component", "engine"))
	eng, err := factory(cmd.String("level"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to start level: %v", err), 1)
	}

	sink := audio.NewSink(logger.Log)
	if err := sink.Init(); err != nil {
		// The game runs fine without sound
		logger.Log.WithError(err).Warn("audio initialization failed")
	}
	defer sink.Close()
	sink.SetMuted(cmd.Bool("mute"))

	screen, err := tcell.NewScreen()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open terminal: %v", err), 1)
	}
	if err := screen.Init(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open terminal: %v", err), 1)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	game := terminal.New(screen, eng, terminal.Options{
		TickRate: int(cmd.Int("tick-rate")),
		Sink:     sink,
		Log:      logger.Log,
	})
	return game.Run(ctx)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}
	logger.Init()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logger.Log.WithError(err).Fatal("command failed")
	}
}
