package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/model"
)

// resolveUser returns the local user for a federated id. Unknown remote ids
// are looked up on their home instance (or fallbackBase) and stored as
// shadow users. Concurrent calls for the same id share one lookup.
func (s *Federation) resolveUser(ctx context.Context, federatedID, fallbackBase string) (model.User, error) {
	user, err := s.users.GetByFederatedID(ctx, federatedID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user by federated id: %w", err)
	}
	if model.InstanceCode(federatedID) == s.cfg.InstanceCode {
		return model.User{}, fmt.Errorf("%w: local user %s does not exist", model.ErrRemoteLookupFailed, federatedID)
	}

	return s.materialize(ctx, federatedID, func(ctx context.Context) (model.User, error) {
		base := fallbackBase
		if home, ok := s.peers.HomeOf(federatedID); ok {
			base = home
		}

		stub, err := s.client.FetchRemoteUser(ctx, base, federatedID)
		if err != nil {
			return model.User{}, err
		}

		return s.shadowUser(federatedID, base, model.SSOVerifyResponse{
			Name:  stub.Name,
			Email: stub.Email,
		}), nil
	})
}

// materialize creates the shadow user built by build unless one already
// exists. Losing a creation race to another writer is not an error.
// Concurrent callers share one creation that outlives any single caller's
// cancellation; each caller still stops waiting when its own ctx is done.
func (s *Federation) materialize(ctx context.Context, federatedID string, build func(context.Context) (model.User, error)) (model.User, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.shadows.DoChan(federatedID, func() (any, error) {
		if user, err := s.users.GetByFederatedID(shared, federatedID); err == nil {
			return user, nil
		}

		user, err := build(shared)
		if err != nil {
			return model.User{}, err
		}

		created, err := s.users.Create(shared, user)
		if errors.Is(err, model.ErrConflict) {
			return s.users.GetByFederatedID(shared, federatedID)
		}
		if err != nil {
			return model.User{}, fmt.Errorf("failed to create shadow user: %w", err)
		}

		s.logger.Info("Federation service: shadow user created",
			"user_id", created.ID,
			"federated_id", federatedID,
			"home", created.HomeInstance)

		return created, nil
	})

	select {
	case <-ctx.Done():
		return model.User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.User{}, res.Err
		}
		return res.Val.(model.User), nil
	}
}

// shadowUser translates a remote user description into a local shadow record.
func (s *Federation) shadowUser(federatedID, home string, remote model.SSOVerifyResponse) model.User {
	first, last := splitName(remote.Name)
	avatar := remote.ProfilePictureURL
	if avatar == "" {
		avatar = s.cfg.DefaultAvatarURL
	}

	return model.User{
		ID:                uuid.New(),
		FederatedID:       federatedID,
		Username:          fallbackUsername(remote.Username, remote.Name),
		Email:             remote.Email,
		FirstName:         first,
		LastName:          last,
		ProfilePictureURL: avatar,
		HasVerifiedEmail:  false,
		IsShadow:          true,
		HomeInstance:      home,
		CreatedAt:         s.now(),
	}
}

// splitName splits a display name on its first space.
func splitName(name string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first, strings.TrimSpace(last)
}

func fallbackUsername(username, name string) string {
	if username != "" {
		return username
	}
	return strings.Join(strings.Fields(name), "")
}
