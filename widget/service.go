package widget

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/fanray/fanray"
	"github.com/fanray/fanray/cache"
	"github.com/fanray/fanray/meta"
)

// areasCacheTTL bounds staleness of the composed-areas cache entry; every
// mutation also invalidates it explicitly.
const areasCacheTTL = 10 * time.Minute

// maxKeyAttempts caps the duplicate-key retry loop in CreateWidget. Six
// random characters collide rarely; hitting the cap means the random source
// is broken and retrying forever would loop.
const maxKeyAttempts = 10

func themeAreasCacheKey(theme string) string {
	return strings.ToLower(theme) + "-theme-widget-areas"
}

// Service is the widget area composer. It resolves named layout areas into
// ordered widget instances, persisting both areas and instances as meta
// records and caching composed results per theme.
type Service struct {
	repo        meta.Repository
	registry    *Registry
	catalog     *Catalog
	cache       cache.Cache
	themes      ThemeProvider
	logger      fanray.Logger
	systemAreas []AreaInfo
}

// NewService wires a composer. systemAreas is copied; the set is fixed for
// the service's lifetime. A nil logger falls back to the stdout default.
func NewService(repo meta.Repository, registry *Registry, catalog *Catalog, c cache.Cache, themes ThemeProvider, systemAreas []AreaInfo, logger fanray.Logger) *Service {
	if logger == nil {
		logger = fanray.DefaultLogger()
	}
	return &Service{
		repo:        repo,
		registry:    registry,
		catalog:     catalog,
		cache:       c,
		themes:      themes,
		logger:      logger,
		systemAreas: append([]AreaInfo(nil), systemAreas...),
	}
}

// cached wire form of a composed area; widget payloads stay serialized so the
// registry can rehydrate them into their concrete types on read.
type cachedArea struct {
	ID      string         `json:"id"`
	Widgets []cachedWidget `json:"widgets"`
}

type cachedWidget struct {
	Folder  string          `json:"folder"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// GetArea resolves one area of the current theme into its ordered widget
// instances, (nil, nil) when the active theme does not declare the area. It
// reads through the same per-theme cache as GetCurrentThemeAreas.
func (s *Service) GetArea(ctx context.Context, areaID string) (*ComposedArea, error) {
	areas, err := s.GetCurrentThemeAreas(ctx)
	if err != nil {
		return nil, err
	}

	for i := range areas {
		if areas[i].ID == areaID {
			return &areas[i], nil
		}
	}

	return nil, nil
}

// GetCurrentThemeAreas resolves every area the active theme declares, fully
// composed. The result is cached per theme; mutations invalidate it.
func (s *Service) GetCurrentThemeAreas(ctx context.Context) ([]ComposedArea, error) {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return nil, err
	}

	key := themeAreasCacheKey(theme)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		areas, err := s.decodeCachedAreas(data)
		if err == nil {
			return areas, nil
		}
		s.logger.Warn("dropping unreadable areas cache entry %q: %v", key, err)
	}

	areaIDs, err := s.themes.ThemeAreas(ctx, theme)
	if err != nil {
		return nil, err
	}

	composed := make([]ComposedArea, 0, len(areaIDs))
	for _, areaID := range areaIDs {
		_, area, err := s.loadArea(ctx, theme, areaID)
		if err != nil {
			return nil, err
		}

		ca, err := s.composeArea(ctx, area)
		if err != nil {
			return nil, err
		}
		composed = append(composed, *ca)
	}

	data, err := s.encodeCachedAreas(composed)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, data, areasCacheTTL); err != nil {
		return nil, err
	}

	return composed, nil
}

// RegisterArea ensures the area exists for the current theme and returns it.
// The id must be system-defined or declared by the active theme.
func (s *Service) RegisterArea(ctx context.Context, areaID string) (*Area, error) {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkArea(ctx, theme, areaID); err != nil {
		return nil, err
	}

	_, area, err := s.loadArea(ctx, theme, areaID)
	return area, err
}

// CreateWidget creates an unattached widget instance of the folder's type
// with its defaults. Key collisions are retried with a fresh random suffix up
// to maxKeyAttempts before failing hard.
func (s *Service) CreateWidget(ctx context.Context, folder string) (Widget, error) {
	w, err := s.registry.New(folder)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize widget")
	}

	var record *meta.Meta
	for attempt := 1; ; attempt++ {
		key := strings.ToLower(folder) + "-" + fanray.RandomString(6)

		record, err = s.repo.Create(ctx, &meta.Meta{
			Key:   key,
			Value: string(data),
			Type:  meta.TypeWidget,
		})
		if err == nil {
			break
		}
		if !meta.IsDuplicate(err) {
			return nil, err
		}
		if attempt >= maxKeyAttempts {
			return nil, NewKeyExhausted(folder, attempt)
		}
		s.logger.Debug("widget key %q collided, retrying (attempt %d)", key, attempt)
	}

	// the payload carries its own id once the row exists
	w.Base().ID = record.ID
	if err := s.saveWidget(ctx, w); err != nil {
		return nil, err
	}

	return w, nil
}

// GetWidget rehydrates a widget instance by id, (nil, nil) when absent.
func (s *Service) GetWidget(ctx context.Context, id int64) (Widget, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		if meta.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return s.registry.DecodeAny([]byte(record.Value))
}

// UpdateWidget persists the instance's current configuration and invalidates
// the current theme's composed cache.
func (s *Service) UpdateWidget(ctx context.Context, w Widget) error {
	if err := s.saveWidget(ctx, w); err != nil {
		return err
	}
	return s.invalidateThemeCache(ctx)
}

// DeleteWidget removes the instance, detaching it from its area first.
// Deleting an absent widget is a no-op.
func (s *Service) DeleteWidget(ctx context.Context, id int64) error {
	w, err := s.GetWidget(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return nil
	}

	if areaID := w.Base().AreaID; areaID != "" {
		if _, err := s.RemoveWidgetFromArea(ctx, id, areaID); err != nil {
			// a theme change can orphan the back-reference; the delete
			// still proceeds
			if !IsUnknownArea(err) {
				return err
			}
			s.logger.Debug("widget %d points at unknown area %q, skipping detach", id, areaID)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	return s.invalidateThemeCache(ctx)
}

// AddWidgetToArea splices the widget id into the area at index; existing ids
// shift right. Adding an id already present moves it instead of duplicating.
func (s *Service) AddWidgetToArea(ctx context.Context, widgetID int64, areaID string, index int) (*Area, error) {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkArea(ctx, theme, areaID); err != nil {
		return nil, err
	}

	record, area, err := s.loadArea(ctx, theme, areaID)
	if err != nil {
		return nil, err
	}

	area.WidgetIDs = insertAt(removeID(area.WidgetIDs, widgetID), widgetID, index)

	if err := s.saveArea(ctx, record, area); err != nil {
		return nil, err
	}

	if w, err := s.GetWidget(ctx, widgetID); err != nil {
		return nil, err
	} else if w != nil && w.Base().AreaID != areaID {
		w.Base().AreaID = areaID
		if err := s.saveWidget(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := s.invalidateThemeCache(ctx); err != nil {
		return nil, err
	}

	return area, nil
}

// RemoveWidgetFromArea filters the widget id out of the area, preserving the
// order of the remainder.
func (s *Service) RemoveWidgetFromArea(ctx context.Context, widgetID int64, areaID string) (*Area, error) {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkArea(ctx, theme, areaID); err != nil {
		return nil, err
	}

	record, area, err := s.loadArea(ctx, theme, areaID)
	if err != nil {
		return nil, err
	}

	area.WidgetIDs = removeID(area.WidgetIDs, widgetID)

	if err := s.saveArea(ctx, record, area); err != nil {
		return nil, err
	}

	if w, err := s.GetWidget(ctx, widgetID); err != nil {
		return nil, err
	} else if w != nil && w.Base().AreaID == areaID {
		w.Base().AreaID = ""
		if err := s.saveWidget(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := s.invalidateThemeCache(ctx); err != nil {
		return nil, err
	}

	return area, nil
}

// OrderWidgetInArea moves the widget id to index within the area: remove then
// reinsert, a list splice rather than a swap.
func (s *Service) OrderWidgetInArea(ctx context.Context, widgetID int64, areaID string, index int) (*Area, error) {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkArea(ctx, theme, areaID); err != nil {
		return nil, err
	}

	record, area, err := s.loadArea(ctx, theme, areaID)
	if err != nil {
		return nil, err
	}

	if !containsID(area.WidgetIDs, widgetID) {
		return area, nil
	}

	area.WidgetIDs = insertAt(removeID(area.WidgetIDs, widgetID), widgetID, index)

	if err := s.saveArea(ctx, record, area); err != nil {
		return nil, err
	}

	if err := s.invalidateThemeCache(ctx); err != nil {
		return nil, err
	}

	return area, nil
}

// checkArea rejects area ids that are neither system-defined nor declared by
// the theme. Mutations never create meta rows for rogue ids.
func (s *Service) checkArea(ctx context.Context, theme, areaID string) error {
	if s.isSystemArea(areaID) {
		return nil
	}

	declared, err := s.themes.ThemeAreas(ctx, theme)
	if err != nil {
		return err
	}
	for _, id := range declared {
		if id == areaID {
			return nil
		}
	}

	return NewUnknownArea(areaID)
}

func (s *Service) isSystemArea(areaID string) bool {
	for _, info := range s.systemAreas {
		if info.ID == areaID {
			return true
		}
	}
	return false
}

// areaMetaKey derives the storage key for an area: system areas are keyed by
// their bare id, theme-declared areas by theme-areaId, both lowercased.
func (s *Service) areaMetaKey(theme, areaID string) (string, meta.Type) {
	if s.isSystemArea(areaID) {
		return strings.ToLower(areaID), meta.TypeWidgetAreaBySystem
	}
	return strings.ToLower(theme + "-" + areaID), meta.TypeWidgetAreaByTheme
}

// loadArea fetches the area's meta record, registering an empty area on
// first use. The lazy registration makes a theme's new areas appear without
// a migration step.
func (s *Service) loadArea(ctx context.Context, theme, areaID string) (*meta.Meta, *Area, error) {
	key, typ := s.areaMetaKey(theme, areaID)

	record, err := s.repo.GetByKey(ctx, key, typ)
	if err != nil {
		if !meta.IsNotFound(err) {
			return nil, nil, err
		}

		area := &Area{ID: areaID, WidgetIDs: []int64{}}
		data, err := json.Marshal(area)
		if err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize widget area")
		}

		record, err = s.repo.Create(ctx, &meta.Meta{Key: key, Value: string(data), Type: typ})
		if err != nil {
			if !meta.IsDuplicate(err) {
				return nil, nil, err
			}
			// another request registered it between our read and write
			record, err = s.repo.GetByKey(ctx, key, typ)
			if err != nil {
				return nil, nil, err
			}
		} else {
			return record, area, nil
		}
	}

	area := &Area{}
	if err := json.Unmarshal([]byte(record.Value), area); err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode widget area").
			WithMetadata(map[string]any{"key": key})
	}

	return record, area, nil
}

func (s *Service) saveArea(ctx context.Context, record *meta.Meta, area *Area) error {
	data, err := json.Marshal(area)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize widget area")
	}

	record.Value = string(data)
	return s.repo.Update(ctx, record)
}

func (s *Service) saveWidget(ctx context.Context, w Widget) error {
	record, err := s.repo.Get(ctx, w.Base().ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(w)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize widget")
	}

	record.Value = string(data)
	return s.repo.Update(ctx, record)
}

// composeArea resolves the area's id list into instances. Ids whose meta
// record is gone, or whose folder lost its registration, are skipped rather
// than failing the whole area.
func (s *Service) composeArea(ctx context.Context, area *Area) (*ComposedArea, error) {
	manifests, err := s.catalog.Installed(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(manifests))
	for _, m := range manifests {
		names[m.Folder] = m.Name
	}

	composed := &ComposedArea{ID: area.ID, Widgets: make([]ComposedWidget, 0, len(area.WidgetIDs))}
	for _, id := range area.WidgetIDs {
		w, err := s.GetWidget(ctx, id)
		if err != nil {
			if IsUnknownFolder(err) {
				s.logger.Warn("skipping widget %d, type no longer registered", id)
				continue
			}
			return nil, err
		}
		if w == nil {
			s.logger.Debug("skipping dangling widget id %d in area %q", id, area.ID)
			continue
		}

		folder := w.Base().Folder
		name, ok := names[folder]
		if !ok {
			name = folder
		}
		composed.Widgets = append(composed.Widgets, ComposedWidget{Widget: w, Name: name})
	}

	return composed, nil
}

func (s *Service) encodeCachedAreas(areas []ComposedArea) ([]byte, error) {
	out := make([]cachedArea, 0, len(areas))
	for _, area := range areas {
		ca := cachedArea{ID: area.ID, Widgets: make([]cachedWidget, 0, len(area.Widgets))}
		for _, cw := range area.Widgets {
			payload, err := json.Marshal(cw.Widget)
			if err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize composed widget")
			}
			ca.Widgets = append(ca.Widgets, cachedWidget{
				Folder:  cw.Widget.Base().Folder,
				Name:    cw.Name,
				Payload: payload,
			})
		}
		out = append(out, ca)
	}
	return json.Marshal(out)
}

func (s *Service) decodeCachedAreas(data []byte) ([]ComposedArea, error) {
	var cached []cachedArea
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	areas := make([]ComposedArea, 0, len(cached))
	for _, ca := range cached {
		area := ComposedArea{ID: ca.ID, Widgets: make([]ComposedWidget, 0, len(ca.Widgets))}
		for _, cw := range ca.Widgets {
			w, err := s.registry.Decode(cw.Folder, cw.Payload)
			if err != nil {
				return nil, err
			}
			area.Widgets = append(area.Widgets, ComposedWidget{Widget: w, Name: cw.Name})
		}
		areas = append(areas, area)
	}

	return areas, nil
}

func (s *Service) invalidateThemeCache(ctx context.Context) error {
	theme, err := s.themes.CurrentTheme(ctx)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, themeAreasCacheKey(theme))
}
