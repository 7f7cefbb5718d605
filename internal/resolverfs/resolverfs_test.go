package resolverfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine/internal/builderrors"
)

func mkResolverDir(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestDiscoverPlainArtifact(t *testing.T) {
	root := t.TempDir()
	dir := mkResolverDir(t, root, "MyResolver")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MyResolver.dll"), []byte("stub"), 0o644))

	r, err := Discover(root, "MyResolver")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "MyResolver.dll"), r.Path)
}

func TestDiscoverXMLManifestPreferred(t *testing.T) {
	root := t.TempDir()
	dir := mkResolverDir(t, root, "MyResolver")
	target := filepath.Join(dir, "actual.dll")
	require.NoError(t, os.WriteFile(target, []byte("stub"), 0o644))
	manifest := `<SdkResolver><Path>actual.dll</Path><ResolvableSdkPattern>^Foo\.</ResolvableSdkPattern></SdkResolver>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MyResolver.xml"), []byte(manifest), 0o644))

	r, err := Discover(root, "MyResolver")
	require.NoError(t, err)
	assert.Equal(t, target, r.Path)
	require.NotNil(t, r.ResolvableSdkPattern)
	assert.True(t, r.ResolvableSdkPattern.MatchString("Foo.Bar"))
}

func TestDiscoverMissingArtifact(t *testing.T) {
	root := t.TempDir()
	_, err := Discover(root, "Nope")
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindResolverArtifactMissing, berr.Kind)
}

func TestDiscoverMalformedManifest(t *testing.T) {
	root := t.TempDir()
	dir := mkResolverDir(t, root, "Bad")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.xml"), []byte("<SdkResolver><Path>"), 0o644))

	_, err := Discover(root, "Bad")
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindResolverManifestMalformed, berr.Kind)
}

func TestDiscoverManifestPointingToMissingPath(t *testing.T) {
	root := t.TempDir()
	dir := mkResolverDir(t, root, "Ghost")
	manifest := `<SdkResolver><Path>ghost.dll</Path></SdkResolver>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Ghost.xml"), []byte(manifest), 0o644))

	_, err := Discover(root, "Ghost")
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindResolverManifestPathMissing, berr.Kind)
}
