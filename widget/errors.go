package widget

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUnknownFolder = "WIDGET_UNKNOWN_FOLDER"
	textCodeKeyExhausted  = "WIDGET_KEY_EXHAUSTED"
	textCodeUnknownArea   = "WIDGET_UNKNOWN_AREA"
)

// NewUnknownFolder reports a folder discriminator with no registered factory.
func NewUnknownFolder(folder string) *goerrors.Error {
	return goerrors.New("no widget type registered for folder", goerrors.CategoryBadInput).
		WithTextCode(textCodeUnknownFolder).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"folder": folder})
}

// NewKeyExhausted reports that widget key allocation kept colliding past the
// retry cap. This points at a broken random source or a pathological table.
func NewKeyExhausted(folder string, attempts int) *goerrors.Error {
	return goerrors.New("unable to allocate a unique widget key", goerrors.CategoryInternal).
		WithTextCode(textCodeKeyExhausted).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"folder": folder, "attempts": attempts})
}

// NewUnknownArea reports an area id that is neither system-defined nor
// declared by the current theme.
func NewUnknownArea(areaID string) *goerrors.Error {
	return goerrors.New("unknown widget area", goerrors.CategoryNotFound).
		WithTextCode(textCodeUnknownArea).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"area_id": areaID})
}

// IsUnknownFolder reports whether err came from an unregistered folder
// discriminator.
func IsUnknownFolder(err error) bool {
	var rich *goerrors.Error
	return errors.As(err, &rich) && rich.TextCode == textCodeUnknownFolder
}

// IsUnknownArea reports whether err came from an area id that is neither
// system-defined nor declared by the active theme.
func IsUnknownArea(err error) bool {
	var rich *goerrors.Error
	return errors.As(err, &rich) && rich.TextCode == textCodeUnknownArea
}
