package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/bluehorizon/skydesk/pkg/auth"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

// Connector builds remote clients for a new or resumed session.
type Connector interface {
	Login(ctx context.Context, serviceURL, identifier, password string) (gateway.Gateway, gateway.Credentials, error)
	Resume(ctx context.Context, creds gateway.Credentials) (gateway.Gateway, error)
}

type gatewaySlot interface {
	Attach(ctx context.Context, gw gateway.Gateway) error
	Detach(ctx context.Context) error
	Attached() bool
}

// EstablishedHook runs after a login or resume attaches a client.
type EstablishedHook func(ctx context.Context, identity string)

// LoginInput is what the user types into the login form.
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Service    string `json:"service,omitempty" validate:"omitempty,url"`
}

// Info describes the current session without exposing tokens.
type Info struct {
	DID             string     `json:"did"`
	Handle          string     `json:"handle"`
	ServiceURL      string     `json:"service_url"`
	Authenticated   bool       `json:"is_authenticated"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
}

type ServiceParams struct {
	Logger         *logger.Logger
	Store          Store
	Connector      Connector
	Gateway        gatewaySlot
	DefaultService string
}

// Service owns the remote session: it logs in, resumes from the stored
// credentials and answers who the current identity is.
type Service struct {
	logg           *logger.Logger
	store          Store
	connector      Connector
	gateway        gatewaySlot
	defaultService string

	mu      sync.RWMutex
	current *gateway.Credentials
	hooks   []EstablishedHook
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("session store is required")
	}
	if params.Connector == nil {
		return nil, errors.New("connector is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway handle is required")
	}
	service := strings.TrimRight(strings.TrimSpace(params.DefaultService), "/")
	if service == "" {
		service = "https://bsky.social"
	}
	return &Service{
		logg:           params.Logger,
		store:          params.Store,
		connector:      params.Connector,
		gateway:        params.Gateway,
		defaultService: service,
	}, nil
}

// OnEstablished registers a hook fired after every successful login or resume.
func (s *Service) OnEstablished(hook EstablishedHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

func (s *Service) Login(ctx context.Context, input LoginInput) (Info, error) {
	identifier := strings.TrimPrefix(strings.TrimSpace(input.Identifier), "@")
	if identifier == "" || input.Password == "" {
		return Info{}, pkgerrors.New(pkgerrors.CodeValidation, "identifier and password are required")
	}
	service := strings.TrimRight(strings.TrimSpace(input.Service), "/")
	if service == "" {
		service = s.defaultService
	}

	gw, creds, err := s.connector.Login(ctx, service, identifier, input.Password)
	if err != nil {
		return Info{}, err
	}
	if creds.ServiceURL == "" {
		creds.ServiceURL = service
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return Info{}, err
	}
	if err := s.establish(ctx, gw, creds); err != nil {
		return Info{}, err
	}
	s.logg.Info(s.logg.WithIdentity(ctx, creds.DID), "session established by login")
	return s.info(creds, true), nil
}

// Resume rebuilds the client from stored credentials.
func (s *Service) Resume(ctx context.Context) (Info, error) {
	creds, err := s.store.Load(ctx)
	if err != nil {
		return Info{}, err
	}
	if creds == nil {
		return Info{}, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "no stored session")
	}
	gw, err := s.connector.Resume(ctx, *creds)
	if err != nil {
		return Info{}, err
	}
	if err := s.establish(ctx, gw, *creds); err != nil {
		return Info{}, err
	}
	s.logg.Info(s.logg.WithIdentity(ctx, creds.DID), "session resumed")
	return s.info(*creds, true), nil
}

func (s *Service) establish(ctx context.Context, gw gateway.Gateway, creds gateway.Credentials) error {
	if err := s.gateway.Attach(ctx, gw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach session client")
	}
	s.mu.Lock()
	s.current = &creds
	hooks := append([]EstablishedHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, creds.DID)
	}
	return nil
}

// Refreshed persists rotated tokens reported by the client.
func (s *Service) Refreshed(ctx context.Context, creds gateway.Credentials) error {
	s.mu.Lock()
	s.current = &creds
	s.mu.Unlock()
	if err := s.store.Save(ctx, creds); err != nil {
		s.logg.Error(s.logg.WithIdentity(ctx, creds.DID), "failed to persist refreshed session", err)
		return err
	}
	return nil
}

// Logout forgets the stored session and detaches the client. Both steps run
// even when one fails.
func (s *Service) Logout(ctx context.Context) error {
	var errs error
	if err := s.store.Clear(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.gateway.Detach(ctx); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach session client"))
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if errs == nil {
		s.logg.Info(ctx, "session cleared")
	}
	return errs
}

// Current reports the session, falling back to the stored one when no
// client is attached. It returns nil when there is none.
func (s *Service) Current(ctx context.Context) (*Info, error) {
	creds, err := s.credentials(ctx)
	if err != nil || creds == nil {
		return nil, err
	}
	info := s.info(*creds, s.gateway.Attached())
	return &info, nil
}

// CurrentIdentity returns the DID queued work and cache rows are filed
// under. The stored session counts even before it is resumed.
func (s *Service) CurrentIdentity(ctx context.Context) (string, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return "", err
	}
	if creds == nil || creds.DID == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotAuthenticated, "no active session")
	}
	return creds.DID, nil
}

func (s *Service) credentials(ctx context.Context) (*gateway.Credentials, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil {
		return current, nil
	}
	creds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		s.mu.Lock()
		if s.current == nil {
			s.current = creds
		}
		s.mu.Unlock()
	}
	return creds, nil
}

func (s *Service) info(creds gateway.Credentials, attached bool) Info {
	info := Info{
		DID:           creds.DID,
		Handle:        creds.Handle,
		ServiceURL:    creds.ServiceURL,
		Authenticated: attached,
	}
	if claims, err := auth.InspectToken(creds.AccessJWT); err == nil {
		info.AccessExpiresAt = claims.Expiry()
	}
	return info
}
