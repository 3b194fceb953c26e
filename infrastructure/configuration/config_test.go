package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var c Config
	require.NoError(t, v.Unmarshal(&c))

	assert.Equal(t, 10001, c.App.Port)
	assert.Equal(t, "file", c.Database.Driver)
	assert.Equal(t, "http", c.Catalog.Mode)
	assert.Equal(t, 15*time.Second, c.Connectivity.Interval)
	assert.Equal(t, 2*time.Second, c.Media.ProbeTimeout)
	assert.Equal(t, 500*time.Millisecond, c.Republish.Delay)
	assert.Equal(t, int64(256<<20), c.Media.MaxBytes)
}

func TestInitAppPortFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("PORT", "8080")
	c := Config{}
	initApp(&c)
	assert.Equal(t, 9090, c.App.Port)

	t.Setenv("APP_PORT", "")
	c = Config{}
	initApp(&c)
	assert.Equal(t, 8080, c.App.Port)
}

func TestInitDatabaseDriverOverride(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DRAFTS_FILE", "/tmp/drafts.json")
	c := Config{}
	initDatabase(&c)
	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, "/tmp/drafts.json", c.Database.File.Path)
	assert.Equal(t, "1433", c.Database.Mssql.Port)
}

func TestLoadEnvFromFileKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(p, []byte("PP_TEST_A=from-file\nPP_TEST_B=\"quoted\"\n"), 0o600))
	t.Setenv("PP_TEST_A", "from-env")
	os.Unsetenv("PP_TEST_B")
	t.Cleanup(func() { os.Unsetenv("PP_TEST_B") })

	LoadEnvFromFile(filepath.Join(dir, "missing.env"), p)

	assert.Equal(t, "from-env", os.Getenv("PP_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("PP_TEST_B"))
}
