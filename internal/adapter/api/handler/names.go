package handler

import (
	"context"

	"marketchat/internal/domain/repository"
	"marketchat/pkg/logger"
)

// DisplayNamer looks up a user's display name in the identity provider.
type DisplayNamer interface {
	DisplayName(ctx context.Context, uid string) (string, error)
}

// NameResolver finds the name to snapshot onto conversations and proposals. The user
// profile wins; the identity provider is the fallback.
type NameResolver struct {
	users    repository.UserRepository
	identity DisplayNamer
}

func NewNameResolver(users repository.UserRepository, identity DisplayNamer) *NameResolver {
	return &NameResolver{
		users:    users,
		identity: identity,
	}
}

func (r *NameResolver) Resolve(ctx context.Context, uid string) string {
	if r == nil || uid == "" {
		return ""
	}

	if r.users != nil {
		user, err := r.users.GetByID(ctx, uid)
		if err == nil && user.Name() != "" {
			return user.Name()
		}
	}

	if r.identity != nil {
		name, err := r.identity.DisplayName(ctx, uid)
		if err != nil {
			logger.Debug("No display name for %s: %v", uid, err)
			return ""
		}
		return name
	}
	return ""
}
