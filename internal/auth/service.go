package auth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "stockroom.app/internal/auth"

// Service ties credential verification, permission resolution and token
// issuance into the login flow.
type Service struct {
	verifier *CredentialVerifier
	resolver *Resolver
	issuer   *Issuer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithTracerProvider sets where login spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewService constructs Service from its collaborators.
func NewService(verifier *CredentialVerifier, resolver *Resolver, issuer *Issuer, logger *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if verifier == nil || resolver == nil || issuer == nil {
		return nil, errors.New("auth: verifier, resolver and issuer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		verifier: verifier,
		resolver: resolver,
		issuer:   issuer,
		logger:   logger,
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStoreService is a convenience constructor over a Store.
func NewStoreService(store Store, hasher *Hasher, issuer *Issuer, logger *zap.Logger, opts ...ServiceOption) (*Service, error) {
	ctx := context.Background()
	return NewService(
		NewCredentialVerifier(store.Users(ctx), hasher, logger),
		NewResolver(store.Permissions(ctx)),
		issuer,
		logger,
		opts...,
	)
}

// Login authenticates credentials and issues a session token carrying the
// role's permissions as of now.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		span.SetStatus(codes.Error, "verify")
		return Session{}, err
	}
	span.SetAttributes(attribute.Int64("identity.id", identity.ID), attribute.Int64("identity.role_id", identity.RoleID))

	perms, err := s.resolver.Resolve(ctx, identity.RoleID)
	if err != nil {
		span.SetStatus(codes.Error, "resolve")
		return Session{}, err
	}
	token, err := s.issuer.Issue(identity, perms)
	if err != nil {
		span.SetStatus(codes.Error, "issue")
		return Session{}, err
	}
	return Session{Token: token, Identity: identity, Permissions: perms}, nil
}

// Authenticate validates a bearer token and returns the principal it carries.
func (s *Service) Authenticate(token string) (Principal, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return Principal{}, err
	}
	return claims.Principal(), nil
}

// Close waits for background work started by logins.
func (s *Service) Close() {
	s.verifier.Close()
}
