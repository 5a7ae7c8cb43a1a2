package application

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/modu-mall/account-api/internal/domain/entity"
	repo "github.com/modu-mall/account-api/internal/domain/repository"
	"github.com/modu-mall/account-api/pkg/helpers"
)

// UploadAvatar stores a custom profile image in GCS and points ProfileImg at
// its public URL, replacing the stock image picked at registration.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*entity.User, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return nil, errors.New("gcs not configured")
	}
	if _, err := s.Repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return nil, err
	}

	u, err := s.Repo.Update(ctx, userID, repo.UpdateFields{ProfileImg: &url})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		if err := s.Redis.HSet(ctx, key, map[string]any{
			"profile_img": u.ProfileImg,
			"updated_at":  nowRFC3339(),
		}).Err(); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("session update failed")
		}
	}

	s.indexUser(ctx, u)
	return u, nil
}
