// Package export writes the full channel catalog to a JSON file.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
)

// Exporter dumps the catalog, ordered by video count, to a local file.
type Exporter struct {
	store  catalog.Store
	path   string
	logger *zap.Logger
}

// New builds an Exporter writing to path.
func New(store catalog.Store, path string, logger *zap.Logger) (*Exporter, error) {
	if path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, path: path, logger: logger}, nil
}

// Export writes every channel to the configured file as a pretty-printed
// JSON array and returns the number of channels written. Parent
// directories are created as needed.
func (e *Exporter) Export(ctx context.Context) (int, error) {
	channels, err := e.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list channels: %w", err)
	}
	if channels == nil {
		channels = []catalog.Channel{}
	}

	data, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal channels: %w", err)
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(e.path, data, 0o600); err != nil {
		return 0, fmt.Errorf("write export file: %w", err)
	}

	e.logger.Info("catalog exported",
		zap.String("path", e.path),
		zap.Int("channels", len(channels)),
	)
	return len(channels), nil
}

// Path returns the configured export destination.
func (e *Exporter) Path() string {
	return e.path
}
