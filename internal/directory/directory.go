// Package directory exposes a read-only view over the external user
// directory for chat creation pickers.
package directory

import (
	"context"

	"go.uber.org/zap"

	"hrchat-service/internal/grpcclient"
)

// UserLister is the slice of the directory client the service needs.
type UserLister interface {
	ListUsers(ctx context.Context) ([]grpcclient.User, error)
	BulkUsers(ctx context.Context, ids []int64) ([]grpcclient.User, error)
}

// PresenceChecker reports liveness for a set of users.
type PresenceChecker interface {
	Online(ctx context.Context, userIDs []int64) (map[int64]bool, error)
}

// PickerUser is a directory entry annotated with presence.
type PickerUser struct {
	grpcclient.User
	Online bool `json:"online"`
}

// Service resolves user identities and presence-eligible users.
type Service struct {
	users    UserLister
	presence PresenceChecker
	logger   *zap.SugaredLogger
}

// NewService constructs the directory service.
func NewService(users UserLister, presence PresenceChecker, logger *zap.SugaredLogger) *Service {
	return &Service{users: users, presence: presence, logger: logger}
}

// PickerUsers lists every user except the caller, annotated with online
// presence. A presence outage degrades to everyone-offline rather than
// failing the listing.
func (s *Service) PickerUsers(ctx context.Context, callerID int64) ([]PickerUser, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if u.ID != callerID {
			ids = append(ids, u.ID)
		}
	}

	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		s.logger.Warnw("presence lookup failed, listing users as offline", "error", err)
		online = map[int64]bool{}
	}

	result := make([]PickerUser, 0, len(ids))
	for _, u := range users {
		if u.ID == callerID {
			continue
		}
		result = append(result, PickerUser{User: u, Online: online[u.ID]})
	}
	return result, nil
}

// Profiles resolves the given user ids to directory entries annotated with
// presence, preserving the input order for ids the directory knows. Same
// degradation as PickerUsers when presence is down.
func (s *Service) Profiles(ctx context.Context, ids []int64) ([]PickerUser, error) {
	if len(ids) == 0 {
		return []PickerUser{}, nil
	}

	users, err := s.users.BulkUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		s.logger.Warnw("presence lookup failed, listing users as offline", "error", err)
		online = map[int64]bool{}
	}

	byID := make(map[int64]grpcclient.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	result := make([]PickerUser, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		result = append(result, PickerUser{User: u, Online: online[id]})
	}
	return result, nil
}
