// Package proxy serves the customer dashboard: it authenticates the caller,
// resolves their panel identity, enforces server ownership and then reads
// from the game panel on their behalf.
package proxy

import (
	"context"
	stderrors "errors"
	"fmt"

	"blockhost-portal/internal/common/auth"
	"blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/identity"
	"blockhost-portal/internal/panel"
)

type Panel interface {
	ListServers(ctx context.Context) ([]panel.ServerListItem, error)
	ServerResources(ctx context.Context, identifier string) (*panel.Resources, error)
	ServerBackups(ctx context.Context, identifier string) ([]panel.Backup, error)
}

type ListResponse struct {
	Data []panel.ServerListItem `json:"data"`
}

type BackupsResponse struct {
	Data []panel.Backup `json:"data"`
}

type Service struct {
	auth       auth.Authenticator
	identities identity.Repository
	panel      Panel
	logger     logger.Logger
}

func NewService(authn auth.Authenticator, identities identity.Repository, p Panel, log logger.Logger) *Service {
	return &Service{auth: authn, identities: identities, panel: p, logger: log}
}

// resolution is the outcome of the shared stage every request passes through.
type resolution struct {
	callerID   string
	externalID int
	// target is the owned server named by the request; nil for list requests.
	target *panel.ServerListItem
}

// Authenticate verifies the bearer token and returns the caller id. An
// unreachable identity provider surfaces as an upstream error, anything else
// as Unauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.NewUnauthorizedError("missing bearer token")
	}
	callerID, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeUpstream {
			return "", err
		}
		return "", errors.NewUnauthorizedError(err.Error())
	}
	return callerID, nil
}

func (s *Service) resolve(ctx context.Context, callerID string, req Request) (*resolution, error) {
	mapping, err := s.identities.Lookup(ctx, callerID)
	if stderrors.Is(err, identity.ErrNotLinked) {
		return nil, errors.NewNotLinkedError(callerID)
	}
	if err != nil {
		return nil, errors.NewIdentityLookupFailedError(err)
	}

	res := &resolution{callerID: callerID, externalID: mapping.ExternalUserID}
	if req.Target() == "" {
		return res, nil
	}

	servers, err := s.panel.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].Matches(req.Target()) && servers[i].OwnedBy(mapping.ExternalUserID) {
			res.target = &servers[i]
			return res, nil
		}
	}
	return nil, errors.NewAccessDeniedError(callerID, req.Target())
}

// Handle authorizes req for the bearer token and returns the response body.
func (s *Service) Handle(ctx context.Context, token string, req Request) (interface{}, error) {
	callerID, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.HandleCaller(ctx, callerID, req)
}

// HandleCaller serves req for an already authenticated caller.
func (s *Service) HandleCaller(ctx context.Context, callerID string, req Request) (interface{}, error) {
	res, err := s.resolve(ctx, callerID, req)
	if err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case ListServers:
		return s.listServers(ctx, res)
	case ServerDetails:
		return s.serverDetails(res, r)
	case ServerResources:
		return s.panel.ServerResources(ctx, res.target.Attributes.Identifier)
	case ServerBackups:
		return s.serverBackups(ctx, res)
	default:
		return nil, errors.NewBadRequestError("Unsupported action", fmt.Sprintf("%T", req))
	}
}

func (s *Service) listServers(ctx context.Context, res *resolution) (*ListResponse, error) {
	servers, err := s.panel.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]panel.ServerListItem, 0, len(servers))
	for _, srv := range servers {
		if srv.OwnedBy(res.externalID) {
			owned = append(owned, srv)
		}
	}
	return &ListResponse{Data: owned}, nil
}

func (s *Service) serverDetails(res *resolution, req ServerDetails) (*panel.ServerListItem, error) {
	if res.target == nil || !res.target.Matches(req.ServerID) || !res.target.OwnedBy(res.externalID) {
		return nil, errors.NewNotFoundError("Server", req.ServerID)
	}
	return res.target, nil
}

func (s *Service) serverBackups(ctx context.Context, res *resolution) (*BackupsResponse, error) {
	backups, err := s.panel.ServerBackups(ctx, res.target.Attributes.Identifier)
	if err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []panel.Backup{}
	}
	return &BackupsResponse{Data: backups}, nil
}
