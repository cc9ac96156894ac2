package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cosmos/aper/pkg/resources"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakeInspector struct {
	version      int
	pkg          string
	err          error
	versionCalls int
	pkgCalls     int
}

func (f *fakeInspector) TargetSDKVersion() (int, error) {
	f.versionCalls++
	return f.version, f.err
}

func (f *fakeInspector) PackageName() (string, error) {
	f.pkgCalls++
	return f.pkg, f.err
}

func TestResolve_DerivesPaths(t *testing.T) {
	cfg := validConfig()
	cfg.OutputDir = "out/"
	store := resources.NewStore(resources.WithDir(t.TempDir()))

	err := cfg.Resolve(29, "com.example.app", store)
	require.NoError(t, err)

	require.True(t, cfg.Resolved())
	require.Equal(t, filepath.Join("out", "com.example.app"), cfg.APKOutputDir())
	require.Equal(t, filepath.Join("/opt/sdks", "android-29", "android.jar"), cfg.VersionSDKFile())
	require.Equal(t, filepath.Join("/opt/mappings", "API29"), cfg.Snapshot().Derived.MappingVersionDir)
	require.Equal(t, 29, cfg.TargetSDKVersion())
	require.Equal(t, "com.example.app", cfg.PackageName())

	// the SDK jar is never checked for existence
	_, statErr := os.Stat(cfg.VersionSDKFile())
	require.True(t, os.IsNotExist(statErr))

	dangerous, err := os.ReadFile(cfg.VersionDangerousFile())
	require.NoError(t, err)
	require.Contains(t, string(dangerous), "android.permission.ACCESS_BACKGROUND_LOCATION")

	callbacks, err := os.ReadFile(cfg.AndroidCallbacksFile())
	require.NoError(t, err)
	require.Contains(t, string(callbacks), "android.location.LocationListener")

	require.Nil(t, cfg.ExcludedPackages(), "excluded packages are absent without exclude-libs")
	require.Len(t, store.Created(), 2)
}

func TestResolve_ExcludeLibs(t *testing.T) {
	cfg := validConfig()
	cfg.ExcludeLibs = true
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))

	require.NoError(t, cfg.Resolve(28, "org.nitri.opentopo", store))

	// Every line of the bundled list, in file order
	raw, err := os.ReadFile(filepath.Join("..", "resources", "arpcompat", resources.ExcludeListName))
	require.NoError(t, err)
	want := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, want, 20)
	got := cfg.ExcludedPackages()
	require.Equal(t, want, got)
	require.Equal(t, "android.support.*", got[0])
	require.Equal(t, "com.tencent.*", got[len(got)-1])

	require.True(t, cfg.IsExcluded("androidx.appcompat.app.AppCompatActivity"))
	require.True(t, cfg.IsExcluded("com.google.android.gms.ads.AdView$1"))
	require.False(t, cfg.IsExcluded("org.nitri.opentopo.MainActivity"))
	require.False(t, cfg.IsExcluded("com.googleplex.Thing"))
}

func TestResolve_UnsupportedVersion(t *testing.T) {
	cfg := validConfig()
	afs := afero.NewMemMapFs()
	store := resources.NewStore(resources.WithFs(afs), resources.WithDir("/tmp"))

	err := cfg.Resolve(99, "com.example.app", store)
	require.ErrorIs(t, err, resources.ErrMissingResource)
	require.ErrorContains(t, err, "99Dangerous.txt")

	require.False(t, cfg.Resolved(), "no configuration should be produced")
	require.Empty(t, cfg.APKOutputDir())
	require.Empty(t, cfg.VersionSDKFile())
}

func TestResolve_IOFailure(t *testing.T) {
	cfg := validConfig()
	store := resources.NewStore(resources.WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())), resources.WithDir("/tmp"))

	err := cfg.Resolve(29, "com.example.app", store)
	var ioErr *resources.IOError
	require.ErrorAs(t, err, &ioErr)
	require.False(t, cfg.Resolved())
}

func TestResolve_RequiresOptions(t *testing.T) {
	cfg := validConfig()
	cfg.MappingDir = ""
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()))

	err := cfg.Resolve(29, "com.example.app", store)
	require.ErrorContains(t, err, "mapping-dir")
	require.False(t, cfg.Resolved())
	require.Empty(t, store.Created())
}

func TestResolve_OnlyOnce(t *testing.T) {
	cfg := validConfig()
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))

	require.NoError(t, cfg.Resolve(29, "com.example.app", store))
	err := cfg.Resolve(30, "com.other.app", store)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	require.Equal(t, 29, cfg.TargetSDKVersion())
	require.Equal(t, "com.example.app", cfg.PackageName())
}

func TestResolve_UnknownMappingStillResolves(t *testing.T) {
	cfg := validConfig()
	cfg.Mapping = "custom"
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))

	require.NoError(t, cfg.Resolve(29, "com.example.app", store))
	require.Empty(t, cfg.Snapshot().Derived.MappingVersionDir)
}

func TestResolveWith(t *testing.T) {
	cfg := validConfig()
	inspector := &fakeInspector{version: 29, pkg: "com.example.app"}
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))

	require.NoError(t, ResolveWith(cfg, inspector, store))
	require.Equal(t, 1, inspector.versionCalls)
	require.Equal(t, 1, inspector.pkgCalls)
	require.Equal(t, "com.example.app", cfg.PackageName())

	failing := &fakeInspector{err: errors.New("aapt not found")}
	cfg = validConfig()
	err := ResolveWith(cfg, failing, store)
	require.ErrorContains(t, err, "aapt not found")
	require.False(t, cfg.Resolved())
}

func TestMappingFiles(t *testing.T) {
	mappingDir := t.TempDir()
	versionDir := filepath.Join(mappingDir, "API29")
	require.NoError(t, os.MkdirAll(filepath.Join(versionDir, "extra"), 0755))
	for _, name := range []string{"CAMERA-Mappings.txt", "README.md", filepath.Join("extra", "SMS-Mappings.txt")} {
		require.NoError(t, os.WriteFile(filepath.Join(versionDir, name), []byte("x"), 0644))
	}

	cfg := validConfig()
	cfg.MappingDir = mappingDir

	_, err := cfg.MappingFiles()
	require.ErrorIs(t, err, ErrNotResolved)

	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))
	require.NoError(t, cfg.Resolve(29, "com.example.app", store))

	files, err := cfg.MappingFiles()
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(versionDir, "CAMERA-Mappings.txt"),
		filepath.Join(versionDir, "extra", "SMS-Mappings.txt"),
	}, files)
}

func TestMappingFiles_MissingDir(t *testing.T) {
	cfg := validConfig()
	cfg.MappingDir = t.TempDir()
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))
	require.NoError(t, cfg.Resolve(30, "com.example.app", store))

	_, err := cfg.MappingFiles()
	require.ErrorContains(t, err, "no such mapping dir")
}

func TestSnapshot_YAML(t *testing.T) {
	cfg := validConfig()
	cfg.ExcludeLibs = true
	store := resources.NewStore(resources.WithFs(afero.NewMemMapFs()), resources.WithDir("/tmp"))
	require.NoError(t, cfg.Resolve(29, "com.example.app", store))

	out, err := yaml.Marshal(cfg.Snapshot())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	require.Equal(t, "/opt/sdks", decoded["sdk-dir"])
	require.Equal(t, "aper", decoded["mapping"])

	derived, ok := decoded["derived"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "com.example.app", derived["package-name"])
	require.NotEmpty(t, derived["excluded-packages"])
}
