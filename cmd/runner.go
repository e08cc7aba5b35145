package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/desertthunder/anitrack/internal/repositories"
	"github.com/desertthunder/anitrack/internal/search"
	"github.com/desertthunder/anitrack/internal/services"
	"github.com/desertthunder/anitrack/internal/session"
	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/desertthunder/anitrack/internal/tasks"
	"github.com/desertthunder/anitrack/internal/tracker"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	openURL    func(string) error
	readSecret func() ([]byte, error) // nil when input is not a terminal

	store       *session.Store
	backend     *services.BackendService
	catalog     *services.CatalogService
	searchCache *repositories.SearchCacheRepository
	searcher    *search.Searcher
	controller  *tracker.Controller
	engine      *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB // optional; enables session persistence and the search cache
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	OpenURL    func(string) error
	// ReadPassword reads a line without echo. Defaults to the terminal reader when Input is
	// a terminal; otherwise passwords are read from Input like any other answer.
	ReadPassword func() ([]byte, error)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout()}
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.ReadPassword == nil {
		if f, ok := opts.Input.(*os.File); ok && term.IsTerminal(f.Fd()) {
			opts.ReadPassword = func() ([]byte, error) { return term.ReadPassword(f.Fd()) }
		}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		openURL:    opts.OpenURL,
		readSecret: opts.ReadPassword,
	}
	r.wire()
	return r
}

// wire builds the service graph from the current config, database and logger.
func (r *Runner) wire() {
	if r.searcher != nil {
		r.searcher.Close()
	}
	if r.controller != nil {
		r.controller.Notifier().Close()
	}

	var persister session.Persister
	if r.db != nil && r.config.Session.Persist {
		persister = repositories.NewSessionRepository(r.db)
	}
	r.store = session.NewStore(persister, r.logger)

	client := services.NewClient(r.config.API.BaseURL, r.httpClient, r.store, r.logger)
	r.backend = services.NewBackendService(client, r.logger)
	r.catalog = services.NewCatalogService(r.config.Catalog.BaseURL, r.httpClient, r.config.Catalog.RateLimit, r.logger)

	var cache search.Cache
	r.searchCache = nil
	if r.db != nil {
		r.searchCache = repositories.NewSearchCacheRepository(r.db)
		cache = r.searchCache.ForSession(r.store.SessionID)
	}
	r.searcher = search.NewSearcher(r.catalog, cache, search.Options{
		MinLength: r.config.Catalog.MinQueryLength,
		Limit:     r.config.Catalog.Limit,
		Debounce:  r.config.Catalog.Debounce(),
	}, r.logger)

	notifier := tracker.NewNotifier(r.config.UI.NotificationTTL(), r.logger)
	r.controller = tracker.NewController(r.backend, r.store, notifier, r.logger)
	r.engine = tasks.NewEngine(r.backend, r.catalog, r.logger)
}

// before loads the config file and database named by the global flags, then restores the
// persisted session.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		config, err := shared.LoadConfig(path)
		switch {
		case errors.Is(err, shared.ErrMissingConfig):
			r.logger.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return ctx, err
		default:
			r.config = config
		}
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	r.httpClient.Timeout = r.config.API.Timeout()

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			r.logger.Warn("database unavailable, session will not persist", "path", r.config.Database.Path, "error", err)
		} else {
			r.db = db
		}
	}

	r.wire()
	if err := r.store.Load(ctx); err != nil {
		r.logger.Warn("failed to restore session", "error", err)
	}
	return ctx, nil
}

// after releases the searcher, notifier and database.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	r.searcher.Close()
	r.controller.Notifier().Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, listCommand, catalogCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}
	r.guard(commands)

	return commands
}

// guard wraps every action so a session the backend has given up on is ended locally.
func (r *Runner) guard(commands []*cli.Command) {
	for _, c := range commands {
		if action := c.Action; action != nil {
			c.Action = func(ctx context.Context, cmd *cli.Command) error {
				err := action(ctx, cmd)
				if errors.Is(err, shared.ErrSessionExpired) {
					r.expireSession(ctx)
				}
				return err
			}
		}
		r.guard(c.Commands)
	}
}

// expireSession drops the stored credential and the cached list after a final 401.
func (r *Runner) expireSession(ctx context.Context) {
	ended, err := r.store.End(ctx)
	if err != nil {
		r.logger.Warn("failed to clear expired session", "error", err)
	}
	r.controller.Reset()
	r.searcher.Cancel()
	r.logger.Info("session expired", "session", ended.SessionID)
}

// requireSession fails fast when no credential is loaded.
func (r *Runner) requireSession() error {
	if !r.store.Active() {
		return fmt.Errorf("%w: run `anitrack auth login` first", shared.ErrNotAuthenticated)
	}
	return nil
}

// printNotice writes the notice the last controller operation posted, if any.
func (r *Runner) printNotice() error {
	notice, ok := r.controller.Notifier().Current()
	if !ok {
		return nil
	}
	if notice.Kind == tracker.KindError {
		return r.writePlain("✗ %s\n", notice.Message)
	}
	return r.writePlain("✓ %s\n", notice.Message)
}

// prompt writes question and reads one trimmed line of input.
func (r *Runner) prompt(question string) (string, error) {
	if err := r.writePlain("%s", question); err != nil {
		return "", err
	}
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret is [Runner.prompt] without echo when a terminal is attached.
func (r *Runner) promptSecret(question string) (string, error) {
	if r.readSecret == nil {
		return r.prompt(question)
	}
	if err := r.writePlain("%s", question); err != nil {
		return "", err
	}
	secret, err := r.readSecret()
	r.writePlain("\n")
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func (r *Runner) confirm(question string) (bool, error) {
	answer, err := r.prompt(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
