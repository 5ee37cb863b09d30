package widget

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanray/fanray"
	"github.com/fanray/fanray/cache"
)

func TestCatalogScan(t *testing.T) {
	ctx := context.Background()

	fsys := fstest.MapFS{
		"tags/widget.json":     {Data: []byte(`{"name":"Tag Cloud","folder":"tags"}`)},
		"clock/widget.json":    {Data: []byte(`{"name":"Clock"}`)},
		"broken/widget.json":   {Data: []byte(`{not json`)},
		"notawidget/readme.md": {Data: []byte(`no descriptor here`)},
		"loose-file.txt":       {Data: []byte(`ignored`)},
	}

	catalog := NewCatalog(fsys, nil, fanray.DefaultLogger())

	manifests, err := catalog.Installed(ctx)
	require.NoError(t, err)
	require.Len(t, manifests, 2)

	// sorted by folder; missing folder field falls back to the directory name
	assert.Equal(t, Manifest{Name: "Clock", Folder: "clock"}, manifests[0])
	assert.Equal(t, Manifest{Name: "Tag Cloud", Folder: "tags"}, manifests[1])
}

func TestCatalogManifestLookup(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(testWidgetsFS(), nil, fanray.DefaultLogger())

	m, err := catalog.Manifest(ctx, "tags")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Tag Cloud", m.Name)

	missing, err := catalog.Manifest(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCatalogCaching(t *testing.T) {
	ctx := context.Background()
	fsys := testWidgetsFS()
	catalog := NewCatalog(fsys, cache.NewMemory(), fanray.DefaultLogger())

	first, err := catalog.Installed(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// a widget installed after the scan stays invisible until invalidation
	fsys["archives/widget.json"] = &fstest.MapFile{Data: []byte(`{"name":"Archives","folder":"archives"}`)}

	cached, err := catalog.Installed(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	require.NoError(t, catalog.Invalidate(ctx))

	fresh, err := catalog.Installed(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}
