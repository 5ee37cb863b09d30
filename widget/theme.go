package widget

import "context"

// ThemeProvider tells the composer which theme is active and which areas that
// theme declares. The host's settings layer implements it; StaticTheme covers
// single-theme deployments and tests.
type ThemeProvider interface {
	CurrentTheme(ctx context.Context) (string, error)
	// ThemeAreas returns the area ids the theme declares, system-defined
	// ones included.
	ThemeAreas(ctx context.Context, theme string) ([]string, error)
}

// StaticTheme is a ThemeProvider with a fixed theme and area list.
type StaticTheme struct {
	Name  string
	Areas []string
}

var _ ThemeProvider = (*StaticTheme)(nil)

func (s *StaticTheme) CurrentTheme(ctx context.Context) (string, error) {
	return s.Name, nil
}

func (s *StaticTheme) ThemeAreas(ctx context.Context, theme string) ([]string, error) {
	return append([]string(nil), s.Areas...), nil
}
