package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/identity"
	"github.com/desertthunder/moviememo/internal/metrics"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/repositories"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/session"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/desertthunder/moviememo/internal/tasks"
	"github.com/desertthunder/moviememo/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	backendClientName  = "backend"
	identityClientName = "identity"
)

// PlaylistService is the playlist backend used by the playlist commands.
type PlaylistService interface {
	Get(ctx context.Context, id int) services.PlaylistResult
	UserPlaylists(ctx context.Context, uid string) services.PlaylistsResult
	All(ctx context.Context) services.PlaylistsResult
	Create(ctx context.Context, uid, name, description string) services.PlaylistResult
	Update(ctx context.Context, id int, update services.PlaylistUpdate) services.PlaylistResult
	Delete(ctx context.Context, id int) services.MutationResult
	AddMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult
	RemoveMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult
}

// ProfileService is the profile backend used by the session and profile commands.
type ProfileService interface {
	session.ProfileService
	GetByUsername(ctx context.Context, username string) services.ProfileResult
}

// SessionHistory reports when a persisted session began.
type SessionHistory interface {
	SignedInSince(ctx context.Context, uid string) (time.Time, bool, error)
}

var (
	_ PlaylistService = (*services.PlaylistClient)(nil)
	_ ProfileService  = (*services.ProfileClient)(nil)
	_ SessionHistory  = (*repositories.SessionRepository)(nil)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	registry   *prometheus.Registry
	collector  metrics.MetricsCollector
	opts       RunnerOpts

	api       *services.APIService
	catalog   ui.Catalog
	playlists PlaylistService
	profiles  ProfileService
	provider  identity.Provider
	history   SessionHistory
	store     *session.Store

	mu         sync.Mutex
	db         *sql.DB
	account    *session.Account
	reconciler *session.Reconciler
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Remote collaborators left nil are built from Config. The identity provider is built on
// first use because it needs the credential database.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Registry   *prometheus.Registry

	API       *services.APIService
	Catalog   ui.Catalog
	Playlists PlaylistService
	Profiles  ProfileService
	Provider  identity.Provider
	History   SessionHistory
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
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		registry:   opts.Registry,
		collector:  metrics.NewCollector(opts.Registry),
		opts:       opts,
		provider:   opts.Provider,
		history:    opts.History,
		store:      session.NewStore(),
	}
	r.wire()
	return r
}

// wire builds the remote clients that were not injected, logging through r.logger.
func (r *Runner) wire() {
	r.api, r.catalog, r.playlists, r.profiles = r.opts.API, r.opts.Catalog, r.opts.Playlists, r.opts.Profiles

	if r.api == nil {
		r.api = services.NewAPIService(
			r.config.Backend.BaseURL,
			r.instrumentedClient(backendClientName, r.config.Backend.Timeout),
			services.WithTrailingSlash(r.config.Backend.TrailingSlash),
			services.WithLogger(shared.WithLogger(r.logger, "component", backendClientName)),
		)
	}
	if r.playlists == nil {
		r.playlists = services.NewPlaylistClient(r.api)
	}
	if r.profiles == nil {
		r.profiles = services.NewProfileClient(r.api)
	}

	if r.catalog == nil && r.config.HasCatalogToken() {
		c := r.config.Catalog
		r.catalog = services.NewCatalogClient(services.CatalogOpts{
			BaseURL:     c.BaseURL,
			BearerToken: c.BearerToken,
			Language:    c.Language,
			Timeout:     c.Timeout,
			RateLimit:   c.RateLimit,
			Burst:       c.Burst,
			CacheTTL:    c.CacheTTL,
			Metrics:     r.collector,
			Logger:      shared.WithLogger(r.logger, "component", "catalog"),
		})
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, profileCommand, playlistsCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger and rebuilds the remote clients to use it.
// It must be called before the session is started.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.wire()
}

// Close stops the session reconciler and closes the credential database.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reconciler != nil {
		r.reconciler.Close()
		r.reconciler = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		r.db = nil
	}
}

func (r *Runner) instrumentedClient(name string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: metrics.InstrumentTransport(http.DefaultTransport, r.collector, name),
	}
}

func (r *Runner) requireCatalog() (ui.Catalog, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: set catalog.bearer_token in config.toml or %s", shared.ErrMissingCredentials, shared.EnvCatalogToken)
	}
	return r.catalog, nil
}

func (r *Runner) exporter() (*tasks.Exporter, error) {
	catalog, err := r.requireCatalog()
	if err != nil {
		return nil, err
	}
	return tasks.NewExporter(r.playlists, catalog, r.logger), nil
}

// startSession restores the persisted session and starts reconciling it with the profile
// backend. It returns once the first reconciliation pass has settled.
func (r *Runner) startSession(ctx context.Context) (*session.Account, error) {
	account, err := r.startAccount(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.settle(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// startAccount builds the session stack once and starts the reconciler without waiting for it.
func (r *Runner) startAccount(ctx context.Context) (*session.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.account != nil {
		return r.account, nil
	}

	if r.provider == nil {
		provider, err := r.newProvider()
		if err != nil {
			return nil, err
		}
		r.provider = provider
	}

	provisioner := session.NewProvisioner(r.profiles, r.store,
		session.WithProvisionerLogger(shared.WithLogger(r.logger, "component", "provisioner")))
	reconciler := session.NewReconciler(r.provider, r.store, r.profiles,
		session.WithProvisioner(provisioner),
		session.WithReconcilerLogger(shared.WithLogger(r.logger, "component", "reconciler")))

	if err := reconciler.Start(ctx); err != nil {
		return nil, err
	}

	r.reconciler = reconciler
	r.account = session.NewAccount(r.provider, r.profiles, provisioner, r.store,
		shared.WithLogger(r.logger, "component", "account"))
	return r.account, nil
}

// settle waits until no reconciliation pass is running.
func (r *Runner) settle(ctx context.Context) (*models.State, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	state, err := r.store.Wait(ctx, func(s *models.State) bool { return !s.Loading })
	if err != nil {
		return state, fmt.Errorf("%w: waiting for session: %v", shared.ErrTimeout, err)
	}
	return state, nil
}

// requireSignIn starts the session and fails unless a user is signed in.
func (r *Runner) requireSignIn(ctx context.Context) (*session.Account, *models.State, error) {
	account, err := r.startSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	state := r.store.GetState()
	if !state.SignedIn() {
		return nil, nil, fmt.Errorf("%w: run `moviememo auth login` first", shared.ErrNotAuthenticated)
	}
	return account, state, nil
}

func (r *Runner) newProvider() (identity.Provider, error) {
	if !r.config.HasIdentity() {
		return nil, fmt.Errorf("%w: set identity.api_key in config.toml or %s", shared.ErrMissingCredentials, shared.EnvIdentityAPIKey)
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	r.db = db

	repo := repositories.NewSessionRepository(db)
	if r.history == nil {
		r.history = repo
	}

	var authorizer identity.Authorizer
	if r.config.HasGoogle() {
		id := r.config.Identity
		authorizer = identity.NewGoogleFlow(id.GoogleClientID, id.GoogleClientSecret, id.RedirectURI, r.config.Server.Addr(),
			identity.WithFlowLogger(shared.WithLogger(r.logger, "component", "google")))
	}

	return identity.NewFirebaseProvider(identity.FirebaseOpts{
		APIKey:      r.config.Identity.APIKey,
		HTTPClient:  r.instrumentedClient(identityClientName, r.config.Identity.Timeout),
		Persistence: repo,
		Authorizer:  authorizer,
		Logger:      shared.WithLogger(r.logger, "component", identityClientName),
	}), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
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
