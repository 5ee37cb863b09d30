package widget

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"sort"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/fanray/fanray"
	"github.com/fanray/fanray/cache"
)

// catalogCacheKey stores the installed-widgets manifest list.
const catalogCacheKey = "installed-widgets-info"

// catalogCacheTTL bounds catalog staleness; installing a widget mid-flight
// shows up within this window without a restart.
const catalogCacheTTL = 10 * time.Minute

// Manifest is the descriptor read from a widget folder's widget.json: the
// display name plus the folder discriminator the registry decodes by.
type Manifest struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// Catalog discovers installable widget types from a filesystem layout: one
// directory per widget type, each holding a widget.json descriptor.
type Catalog struct {
	fsys   fs.FS
	cache  cache.Cache
	logger fanray.Logger
}

// NewCatalog builds a catalog over fsys. A nil cache disables caching; a nil
// logger falls back to the stdout default.
func NewCatalog(fsys fs.FS, c cache.Cache, logger fanray.Logger) *Catalog {
	if logger == nil {
		logger = fanray.DefaultLogger()
	}
	return &Catalog{fsys: fsys, cache: c, logger: logger}
}

// Installed returns the manifests of every installed widget type, sorted by
// folder. Results are cached under catalogCacheKey.
func (c *Catalog) Installed(ctx context.Context) ([]Manifest, error) {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, catalogCacheKey); err != nil {
			return nil, err
		} else if ok {
			var manifests []Manifest
			if err := json.Unmarshal(data, &manifests); err == nil {
				return manifests, nil
			}
			c.logger.Warn("dropping unreadable catalog cache entry %q", catalogCacheKey)
		}
	}

	manifests, err := c.scan()
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		data, err := json.Marshal(manifests)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize catalog")
		}
		if err := c.cache.Set(ctx, catalogCacheKey, data, catalogCacheTTL); err != nil {
			return nil, err
		}
	}

	return manifests, nil
}

// Manifest returns the descriptor for one folder, or (nil, nil) when the
// folder is not installed.
func (c *Catalog) Manifest(ctx context.Context, folder string) (*Manifest, error) {
	manifests, err := c.Installed(ctx)
	if err != nil {
		return nil, err
	}

	for i := range manifests {
		if manifests[i].Folder == folder {
			return &manifests[i], nil
		}
	}

	return nil, nil
}

// Invalidate drops the cached manifest list, forcing a rescan on next read.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, catalogCacheKey)
}

func (c *Catalog) scan() ([]Manifest, error) {
	entries, err := fs.ReadDir(c.fsys, ".")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read widgets directory")
	}

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := fs.ReadFile(c.fsys, path.Join(entry.Name(), "widget.json"))
		if err != nil {
			// a folder without a descriptor is not an installable widget
			c.logger.Debug("skipping folder %q, no widget.json", entry.Name())
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			c.logger.Warn("skipping folder %q, malformed widget.json: %v", entry.Name(), err)
			continue
		}

		if manifest.Folder == "" {
			manifest.Folder = entry.Name()
		}
		manifests = append(manifests, manifest)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Folder < manifests[j].Folder })

	return manifests, nil
}
