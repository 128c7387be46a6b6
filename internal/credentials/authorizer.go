package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const callbackPage = "The authentication flow has completed. You may close this window.\n"

// Authorizer runs an interactive authorization and returns the issued token.
type Authorizer interface {
	Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	return f(ctx, conf)
}

// LoopbackAuthorizer implements the installed-application flow: it listens on
// a loopback address, sends the user to the consent page and exchanges the
// code delivered to the redirect. State and PKCE verifier are fresh per run.
type LoopbackAuthorizer struct {
	// Host is the listen host (default 127.0.0.1).
	Host string

	// Port is the listen port; 0 lets the OS choose.
	Port int

	// OpenBrowser launches the system browser on the consent URL.
	OpenBrowser bool

	// Timeout bounds the wait for the redirect; 0 waits until ctx is done.
	Timeout time.Duration

	Logger *slog.Logger

	// openURL is called with the consent URL; defaults to the system browser.
	openURL func(string) error
}

// Authorize runs the flow once.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(a.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	c := *conf
	c.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") == "" && q.Get("code") == "" && q.Get("error") == "" {
			http.NotFound(w, r)
			return
		}

		var cbErr error
		switch {
		case q.Get("error") != "":
			cbErr = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			cbErr = errors.New("authorization callback state mismatch")
		case q.Get("code") == "":
			cbErr = errors.New("authorization callback carried no code")
		}

		if cbErr != nil {
			http.Error(w, cbErr.Error(), http.StatusBadRequest)
			once.Do(func() { errCh <- cbErr })
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(callbackPage))
		once.Do(func() { codeCh <- q.Get("code") })
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			once.Do(func() { errCh <- fmt.Errorf("callback listener failed: %w", err) })
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("authorization required, visit the consent page to continue",
		"url", authURL,
		"redirect", c.RedirectURL,
	)

	if a.OpenBrowser || a.openURL != nil {
		open := a.openURL
		if open == nil {
			open = openBrowser
		}
		if err := open(authURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	}

	waitCtx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-waitCtx.Done():
		return nil, fmt.Errorf("waiting for authorization callback: %w", waitCtx.Err())
	}

	tok, err := c.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return tok, nil
}

// openBrowser attempts to open url in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
