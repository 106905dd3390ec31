package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// SetImage stores the uploaded image as <dir>/event_<id><ext> and records its
// public URL on the event. The extension is taken from fileName. The file
// replaces the previous one only after the event row is saved.
func (s *Service) SetImage(ctx context.Context, id int64, fileName string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !imageExtensions[ext] {
		return "", ErrUnsupportedImage
	}

	uow := s.uows.New()
	event, err := uow.Events().GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNotFound
	}

	staged, err := s.stageImage(content)
	if err != nil {
		return "", err
	}
	defer os.Remove(staged)

	previous := event.ImagePath
	name := fmt.Sprintf("event_%d%s", id, ext)
	url := path.Join("/", s.images.URLPrefix, name)
	event.ImagePath = &url
	if err := uow.Events().Update(ctx, event, "image_path"); err != nil {
		return "", err
	}
	if err := uow.SaveChanges(ctx); err != nil {
		return "", fmt.Errorf("save event image: %w", err)
	}

	if err := os.Rename(staged, filepath.Join(s.images.Dir, name)); err != nil {
		s.restoreImagePath(ctx, event, previous)
		return "", fmt.Errorf("store image: %w", err)
	}
	if previous != nil && *previous != url {
		s.removeImageFile(previous)
	}

	s.logger.Info().Int64("event_id", id).Str("image", url).Msg("event image stored")
	return url, nil
}

// restoreImagePath points the event back at its previous image after the new
// file could not be put in place.
func (s *Service) restoreImagePath(ctx context.Context, event *entities.Event, previous *string) {
	event.ImagePath = previous
	uow := s.uows.New()
	err := uow.Events().Update(ctx, event, "image_path")
	if err == nil {
		err = uow.SaveChanges(ctx)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("event_id", event.ID).Msg("failed to restore event image path")
	}
}

// GetImagePath returns the public URL of the event image.
func (s *Service) GetImagePath(ctx context.Context, id int64) (string, error) {
	event, err := s.uows.New().Events().GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNotFound
	}
	if event.ImagePath == nil || *event.ImagePath == "" {
		return "", ErrNoImage
	}
	return *event.ImagePath, nil
}

// stageImage streams content into a temporary file in the image directory
// and returns its path. The caller renames or removes it.
func (s *Service) stageImage(content io.Reader) (string, error) {
	if err := os.MkdirAll(s.images.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.images.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	src := content
	if s.images.MaxUploadBytes > 0 {
		src = io.LimitReader(content, s.images.MaxUploadBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("write image: %w", err)
	case s.images.MaxUploadBytes > 0 && n > s.images.MaxUploadBytes:
		err = ErrImageTooLarge
	default:
		if chmodErr := os.Chmod(tmp.Name(), 0o644); chmodErr != nil {
			err = fmt.Errorf("write image: %w", chmodErr)
		}
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Service) removeImageFile(url *string) {
	if url == nil || *url == "" {
		return
	}
	file := filepath.Join(s.images.Dir, filepath.Base(*url))
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn().Err(err).Str("file", file).Msg("failed to remove event image")
	}
}
