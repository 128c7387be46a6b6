package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/nextup/internal/instrumentation"
	"github.com/teemow/nextup/internal/logging"
)

var (
	// ErrCredentialUnavailable means no valid path to a token exists.
	ErrCredentialUnavailable = errors.New("credentials unavailable")

	// ErrNoCredential means nothing is stored yet.
	ErrNoCredential = errors.New("no stored credential")
)

// Manager resolves a usable Credential, refreshing or re-authorizing as needed.
type Manager struct {
	store        Store
	clientConfig ClientConfigSource
	authorizer   Authorizer

	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	httpClient *http.Client
	now        func() time.Time

	mu sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithAuditLogger sets the audit logger for credential lifecycle events.
func WithAuditLogger(audit *instrumentation.AuditLogger) ManagerOption {
	return func(m *Manager) { m.audit = audit }
}

// WithHTTPClient sets the HTTP client used to talk to the token endpoint.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = client }
}

// WithClock overrides the time source used to judge expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. A nil authorizer disables interactive
// authorization; states that need it then fail with ErrCredentialUnavailable.
func NewManager(store Store, clientConfig ClientConfigSource, authorizer Authorizer, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		clientConfig: clientConfig,
		authorizer:   authorizer,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithOperation(m.logger, "credentials")
	return m
}

// Obtain returns a credential valid for scopes. The stored credential is
// returned unchanged when valid. An expired credential is refreshed; if the
// provider rejects the refresh token, or no usable credential is stored,
// interactive authorization runs. Transport failures and token endpoint
// server errors during refresh are returned as is.
func (m *Manager) Obtain(ctx context.Context, scopes []string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := instrumentation.StartCredentialSpan(ctx)
	defer span.End()

	unlock, err := m.store.Lock(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	defer unlock()

	event := instrumentation.NewCredentialEvent(instrumentation.ActionResolve).
		WithScopes(scopes).
		WithSpanContext(ctx)

	cred, loadErr := m.store.Load()
	if loadErr != nil {
		if !errors.Is(loadErr, ErrNoCredential) {
			m.logger.Warn("stored credential unreadable, treating as missing", logging.Err(loadErr))
		}
		cred = nil
	}

	state := Classify(cred, scopes, m.now())
	span.SetAttributes(attribute.String(instrumentation.SpanAttrCredentialState, string(state)))
	m.metrics.RecordCredentialResolution(ctx, string(state))
	m.audit.LogCredentialEvent(ctx, event.WithState(string(state)).Complete(nil))
	m.logger.Debug("resolved stored credential", logging.State(string(state)))

	switch state {
	case StateValid:
		instrumentation.SetSpanSuccess(span)
		return cred, nil

	case StateExpiredRefreshable:
		err := m.refresh(ctx, cred, scopes)
		if err == nil {
			instrumentation.AddSpanEvent(span, "token.refreshed")
			m.persist(ctx, cred)
			instrumentation.SetSpanSuccess(span)
			return cred, nil
		}

		rejected, ok := revoked(err)
		if !ok {
			instrumentation.SetSpanError(span, err)
			return nil, err
		}
		instrumentation.AddSpanEvent(span, "token.rejected",
			attribute.String("error_code", rejected.ErrorCode))
		m.logger.Warn("refresh token rejected, starting interactive authorization",
			"error_code", rejected.ErrorCode)
	}

	cred, err = m.authorize(ctx, scopes)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	m.persist(ctx, cred)
	instrumentation.SetSpanSuccess(span)
	return cred, nil
}

// Inspect loads the stored credential and classifies it without contacting
// the token endpoint.
func (m *Manager) Inspect(ctx context.Context, scopes []string) (*Credential, State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unlock, err := m.store.Lock(ctx)
	if err != nil {
		return nil, StateNoFile, err
	}
	defer unlock()

	cred, err := m.store.Load()
	if err != nil {
		return nil, StateNoFile, err
	}
	return cred, Classify(cred, scopes, m.now()), nil
}

// Forget removes the stored credential.
func (m *Manager) Forget(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unlock, err := m.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = m.store.Remove()
	m.audit.LogCredentialEvent(ctx, instrumentation.NewCredentialEvent(instrumentation.ActionRevoke).Complete(err))
	return err
}

// refresh exchanges the refresh token and updates cred in place.
func (m *Manager) refresh(ctx context.Context, cred *Credential, scopes []string) error {
	event := instrumentation.NewCredentialEvent(instrumentation.ActionRefresh).WithSpanContext(ctx)

	conf, err := m.clientConfig(scopes)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		m.audit.LogCredentialEvent(ctx, event.Complete(err))
		return err
	}

	// A past expiry makes the token source go to the token endpoint even
	// when our clock and the transport's disagree.
	stale := cred.Token()
	stale.Expiry = time.Unix(1, 0)

	tok, err := conf.TokenSource(m.oauthContext(ctx), stale).Token()
	if err != nil {
		result := instrumentation.OAuthResultFailure
		if _, ok := revoked(err); ok {
			result = instrumentation.OAuthResultRejected
		}
		m.metrics.RecordOAuthTokenRefresh(ctx, result)
		m.audit.LogCredentialEvent(ctx, event.Complete(err))
		return fmt.Errorf("failed to refresh credential: %w", err)
	}

	cred.apply(tok)
	m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	m.audit.LogCredentialEvent(ctx, event.WithScopes(cred.Scopes).Complete(nil))
	m.logger.Info("refreshed credential", "expiry", cred.Expiry, "access_token", logging.SanitizeToken(cred.AccessToken))
	return nil
}

// revoked reports whether a refresh failure means the refresh token is no
// longer accepted. Only invalid_grant or a 400/401 answer count; server
// errors and transport failures leave the refresh token in place.
func revoked(err error) (*oauth2.RetrieveError, bool) {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return nil, false
	}
	if rerr.ErrorCode == "invalid_grant" {
		return rerr, true
	}
	if rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return rerr, true
		}
	}
	return nil, false
}

// authorize runs interactive authorization and returns a new credential.
func (m *Manager) authorize(ctx context.Context, scopes []string) (*Credential, error) {
	event := instrumentation.NewCredentialEvent(instrumentation.ActionAuthorize).
		WithScopes(scopes).
		WithSpanContext(ctx)

	fail := func(err error) (*Credential, error) {
		err = fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
		m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		m.audit.LogCredentialEvent(ctx, event.Complete(err))
		return nil, err
	}

	if m.authorizer == nil {
		return fail(errors.New("interactive authorization is disabled"))
	}

	conf, err := m.clientConfig(scopes)
	if err != nil {
		return fail(err)
	}

	tok, err := m.authorizer.Authorize(m.oauthContext(ctx), conf)
	if err != nil {
		return fail(err)
	}

	cred := FromToken(tok, scopes)
	m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	m.audit.LogCredentialEvent(ctx, event.Complete(nil))
	m.logger.Info("authorized new credential", "expiry", cred.Expiry, "refreshable", cred.Refreshable())
	return cred, nil
}

// persist saves cred. A failed save is logged; the credential stays usable
// for this request.
func (m *Manager) persist(ctx context.Context, cred *Credential) {
	event := instrumentation.NewCredentialEvent(instrumentation.ActionPersist)
	if p, ok := m.store.(interface{ Path() string }); ok {
		event.WithPath(p.Path())
	}

	err := m.store.Save(cred)
	m.audit.LogCredentialEvent(ctx, event.Complete(err))
	if err != nil {
		m.logger.Error("failed to persist credential", logging.Err(err))
	}
}

func (m *Manager) oauthContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
