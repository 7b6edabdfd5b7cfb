package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/blob"
	"github.com/gabriel-vasile/mimetype"
	"github.com/phuslu/log"
)

// ErrNotImage is returned for profile pictures that are not images.
var ErrNotImage = errors.New("profile picture is not an image")

// SetProfilePhoto stores data as the user's profile picture, replacing the
// previous one, and points the profile at it.
func (s *Service) SetProfilePhoto(ctx context.Context, uid string, data []byte) (*askwarren.UserProfile, error) {
	p, err := s.store.GetProfile(uid)
	if err != nil {
		return nil, err
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mtype)
	}
	key := blob.ProfileImagePath(uid)
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("cannot store profile picture: %w", err)
	}
	// the object keeps its path, the version defeats browser caches.
	p.PhotoURL = s.objects.URL(key) + "?v=" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	log.Info().Str("uid", uid).Str("type", mtype.String()).Int("size", len(data)).Msg("profile picture updated")
	return p, nil
}

// DeleteProfilePhoto removes the stored picture and clears the profile's photo,
// whether it was uploaded or came from Google.
func (s *Service) DeleteProfilePhoto(ctx context.Context, uid string) (*askwarren.UserProfile, error) {
	p, err := s.store.GetProfile(uid)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Delete(ctx, blob.ProfileImagePath(uid)); err != nil {
		return nil, fmt.Errorf("cannot delete profile picture: %w", err)
	}
	p.PhotoURL = ""
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}
