package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	errx "github.com/advisor-core/server/internal/core/error"
	logx "github.com/advisor-core/server/pkg/logger"
)

// Store persists a rendered slide and returns the public URL it is served at.
type Store interface {
	Store(ctx context.Context, data []byte) (string, error)
}

// MediaRoute is the HTTP path prefix the server mounts for stored slides.
const MediaRoute = "/api/ppt/media"

// FSStore writes slides to a local directory served as static media.
type FSStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &FSStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *FSStore) Store(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errx.WrapArtifact(err)
	}

	name := uuid.New().String() + ".png"
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logx.Error().Err(err).Str("path", path).Msg("Error writing slide artifact")
		return "", errx.WrapArtifact(err)
	}

	url := s.baseURL + MediaRoute + "/" + name
	logx.Debug().Str("url", url).Int("bytes", len(data)).Msg("Slide artifact stored")
	return url, nil
}

var _ Store = (*FSStore)(nil)
