package identity

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/server"
	"github.com/desertthunder/moviememo/internal/shared"
	"golang.org/x/oauth2"
)

// GoogleEndpoint is Google's OAuth2 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

const defaultAuthorizeTimeout = 2 * time.Minute

// Authorizer obtains an OAuth2 token from the user.
type Authorizer interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// GoogleFlow runs the authorization code flow with a local callback server.
type GoogleFlow struct {
	config  oauth2.Config
	addr    string
	open    shared.BrowserOpener
	timeout time.Duration
	logger  *log.Logger
}

type GoogleOption func(*GoogleFlow)

// WithEndpoint overrides the authorization and token URLs.
func WithEndpoint(e oauth2.Endpoint) GoogleOption {
	return func(g *GoogleFlow) { g.config.Endpoint = e }
}

// WithBrowser replaces the function used to open the consent page.
func WithBrowser(open shared.BrowserOpener) GoogleOption {
	return func(g *GoogleFlow) { g.open = open }
}

func WithAuthorizeTimeout(d time.Duration) GoogleOption {
	return func(g *GoogleFlow) { g.timeout = d }
}

func WithFlowLogger(logger *log.Logger) GoogleOption {
	return func(g *GoogleFlow) { g.logger = logger }
}

// NewGoogleFlow configures a flow that listens on addr. An empty redirectURI is derived from
// the bound address, which allows addr to use port 0.
func NewGoogleFlow(clientID, clientSecret, redirectURI, addr string, opts ...GoogleOption) *GoogleFlow {
	g := &GoogleFlow{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     GoogleEndpoint,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
		},
		addr:    addr,
		open:    shared.OpenBrowser,
		timeout: defaultAuthorizeTimeout,
		logger:  shared.NewLogger(io.Discard),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize opens the consent page and waits for the callback, the timeout or ctx.
func (g *GoogleFlow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	config := g.config
	state := shared.GenerateState()
	handler := server.NewOAuthHandler(&config, state)

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(g.logger), server.RequestLogger(g.logger))
	router.Handler(handler)

	srv, err := server.Listen(g.addr, router, g.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			g.logger.Warn("callback server shutdown", "error", err)
		}
	}()

	if config.RedirectURL == "" {
		config.RedirectURL = srv.URL(handler.Routes()[0])
	} else if u, err := url.Parse(config.RedirectURL); err == nil && u.Path != handler.Routes()[0] {
		return nil, fmt.Errorf("%w: redirect uri must use the %s path", shared.ErrInvalidConfig, handler.Routes()[0])
	}

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "select_account"))
	if err := g.open(authURL); err != nil {
		g.logger.Warn("could not open browser, visit the URL manually", "url", authURL, "error", err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return nil, result.Error()
		}
		return result.Token, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no authorization received within %s", shared.ErrTimeout, g.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
