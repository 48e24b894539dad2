package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"todosync/backend/rest"
	"todosync/backend/sqlite"
	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/server"
	"todosync/internal/shutdown"
	"todosync/internal/tui"
	"todosync/internal/utils"
	"todosync/internal/views"
)

// Version is set at build time
var Version = "dev"

// shutdownGrace bounds how long serve waits for in-flight requests
const shutdownGrace = 5 * time.Second

// Config holds process-level settings and test hooks
type Config struct {
	ConfigPath string // default for --config
	Verbose    bool

	Context    context.Context // cancels serve; defaults to Background
	IsTerminal func() bool     // overrides TTY detection (for testing)
	Ready      func(addr string)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := utils.GetLogger()
	logger.SetOutput(stderr)
	logger.SetVerbose(cfg.Verbose)

	rootCmd := NewTodoSync(stdout, stderr, cfg)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", utils.WithSuggestion(err))
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  int    `json:"code"`
}

func outputErrorJSON(err error, stdout io.Writer) {
	kind := "error"
	switch {
	case utils.IsValidation(err):
		kind = "validation"
	case utils.IsNotFound(err):
		kind = "not_found"
	case utils.IsNetworkError(err):
		kind = "network"
	}
	jsonBytes, _ := json.Marshal(errorResponse{Error: err.Error(), Kind: kind, Code: 1})
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

// NewTodoSync creates the root command with injectable IO
func NewTodoSync(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:   "todosync",
		Short: "A to-do list synced with a REST task store",
		Long: "todosync keeps a local list of tasks in step with a remote JSON collection.\n" +
			"Without a subcommand it opens the interactive view on a terminal and prints the list otherwise.",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal(cfg, stdout) {
				return runTUI(cmd, cfg)
			}
			return runList(cmd, cfg, stdout, "")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/todosync/config.yaml)")
	cmd.PersistentFlags().String("api", "", "Task collection URL (overrides api.base_url)")
	cmd.PersistentFlags().Int("limit", 0, "Number of tasks to load (overrides api.page_size)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")

	cmd.AddCommand(newListCmd(stdout, cfg))
	cmd.AddCommand(newAddCmd(stdout, cfg))
	cmd.AddCommand(newToggleCmd(stdout, cfg))
	cmd.AddCommand(newEditCmd(stdout, cfg))
	cmd.AddCommand(newDeleteCmd(stdout, cfg))
	cmd.AddCommand(newTUICmd(cfg))
	cmd.AddCommand(newServeCmd(stdout, cfg))

	return cmd
}

func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the first page of tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			return runList(cmd, cfg, stdout, filter)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	listCmd.Flags().StringP("filter", "f", "", "Filter: all, active or completed (default ui.default_filter)")
	return listCmd
}

func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, _ := cmd.Flags().GetString("due")
			return runAction(cmd, cfg, stdout, app.AddIntent{Text: strings.Join(args, " "), Due: due})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addCmd.Flags().String("due", "", "Due date: YYYY-MM-DD, today, tomorrow or +Nd/+Nw/+Nm (kept locally)")
	return addCmd
}

func newToggleCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, cfg, stdout, app.ToggleIntent{ID: id})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newEditCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Rename a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, cfg, stdout, app.EditIntent{ID: id, Text: strings.Join(args[1:], " ")})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			return runAction(cmd, cfg, stdout, app.DeleteIntent{ID: id})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newTUICmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive task list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newServeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a task collection backed by SQLite",
		Long:  "Serve the REST task contract on /todos so the client can run against a local store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cfg, stdout)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default server.addr)")
	serveCmd.Flags().String("db", "", "SQLite database path, or :memory: (default server.db_path)")
	serveCmd.Flags().Int("seed", 0, "Insert N sample tasks on start")
	return serveCmd
}

// loadSettings reads the config file and applies the global flag overrides
func loadSettings(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = cfg.ConfigPath
	}

	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	apiURL, _ := cmd.Flags().GetString("api")
	limit, _ := cmd.Flags().GetInt("limit")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if limit < 0 {
		return nil, &utils.ValidationError{Field: "limit", Message: "must not be negative"}
	}
	settings.ApplyFlags(apiURL, limit, verbose || cfg.Verbose)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Logging.Verbose {
		utils.SetVerboseMode(true)
	}
	return settings, nil
}

func newRESTStore(settings *config.Config) (*rest.Store, error) {
	return rest.New(rest.Config{
		BaseURL:    settings.API.BaseURL,
		Timeout:    settings.GetTimeout(),
		MaxRetries: settings.GetMaxRetries(),
		Logger:     utils.GetLogger(),
	})
}

// newHandler loads settings, connects to the store and loads the first page
func newHandler(cmd *cobra.Command, cfg *Config, filter views.Filter) (*app.Handler, func(), error) {
	settings, err := loadSettings(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	if filter == "" {
		filter = settings.GetDefaultFilter()
	}

	store, err := newRESTStore(settings)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = store.Close() }

	h := app.NewHandler(store, app.NewState(filter), utils.GetLogger(), settings.API.PageSize)
	if err := h.Load(cmd.Context()); err != nil {
		closeStore()
		return nil, nil, err
	}
	return h, closeStore, nil
}

func writeView(cmd *cobra.Command, stdout io.Writer, v views.View) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	var w views.Writer = views.NewTextRenderer(stdout)
	if jsonOutput {
		w = views.NewJSONRenderer(stdout)
	}
	return w.Write(v)
}

func runList(cmd *cobra.Command, cfg *Config, stdout io.Writer, filterName string) error {
	var filter views.Filter
	if filterName != "" {
		f, err := views.ParseFilter(filterName)
		if err != nil {
			return err
		}
		filter = f
	}

	h, closeStore, err := newHandler(cmd, cfg, filter)
	if err != nil {
		return err
	}
	defer closeStore()

	return writeView(cmd, stdout, h.View())
}

// runAction loads the first page, runs one write and prints the result
func runAction(cmd *cobra.Command, cfg *Config, stdout io.Writer, in app.Intent) error {
	h, closeStore, err := newHandler(cmd, cfg, "")
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := h.Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); !jsonOutput {
		_, _ = fmt.Fprintln(stdout, res.Summary())
	}
	return writeView(cmd, stdout, h.View())
}

func isTerminal(cfg *Config, stdout io.Writer) bool {
	if cfg.IsTerminal != nil {
		return cfg.IsTerminal()
	}
	f, ok := stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runTUI runs the interactive view. Log output goes to a file while the
// program owns the terminal.
func runTUI(cmd *cobra.Command, cfg *Config) error {
	settings, err := loadSettings(cmd, cfg)
	if err != nil {
		return err
	}
	store, err := newRESTStore(settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	logFile, err := utils.OpenLogFile(settings.Logging.File)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	logger := utils.GetLogger()
	logger.SetOutput(logFile)
	defer logger.SetOutput(cmd.ErrOrStderr())
	logger.Debug("tui session started against %s", store.BaseURL())

	model := tui.New(store, tui.Config{
		Limit:   settings.API.PageSize,
		Filter:  settings.GetDefaultFilter(),
		Logger:  logger,
		Context: cmd.Context(),
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
		return nil
	}
	return err
}

// runServe serves the task contract until SIGINT, SIGTERM or cancellation
func runServe(cmd *cobra.Command, cfg *Config, stdout io.Writer) error {
	settings, err := loadSettings(cmd, cfg)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = settings.Server.Addr
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = settings.Server.DBPath
	}
	seed, _ := cmd.Flags().GetInt("seed")
	if seed < 0 {
		return &utils.ValidationError{Field: "seed", Message: "must not be negative"}
	}

	logger := utils.GetLogger()
	ctx := cmd.Context()

	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if seed > 0 {
		if err := store.Seed(ctx, seed); err != nil {
			_ = store.Close()
			return fmt.Errorf("seed store: %w", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           server.New(store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mgr := shutdown.NewManager(logger)
	stop := mgr.NotifyOnSignals()
	defer stop()
	mgr.RegisterCleanup("store", func(context.Context) error { return store.Close() })
	mgr.RegisterCleanup("http server", srv.Shutdown)

	go func() {
		select {
		case <-ctx.Done():
			mgr.Shutdown("context cancelled")
		case <-mgr.Context().Done():
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	bound := ln.Addr().String()
	_, _ = fmt.Fprintf(stdout, "Serving tasks on http://%s%s\n", bound, server.DefaultCollectionPath)
	logger.Info("serving %s (db %s, seeded %d)", bound, dbPath, seed)
	if cfg.Ready != nil {
		cfg.Ready(bound)
	}

	var runErr error
	select {
	case <-mgr.Context().Done():
	case runErr = <-serveErr:
		mgr.Shutdown("server error")
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := mgr.Wait(graceCtx); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("server stopped: %s", mgr.Reason())
	return runErr
}
