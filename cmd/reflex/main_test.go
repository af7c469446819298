package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/reflex/internal/audit"
	"github.com/fentz26/reflex/internal/config"
	"github.com/fentz26/reflex/internal/scoreboard"
	"github.com/fentz26/reflex/internal/store"
)

func startTestService(t *testing.T) string {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "scores.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	service := scoreboard.NewService(s, audit.NewWriter(s), zerolog.Nop())
	srv := httptest.NewServer(scoreboard.NewServer(service, "", nil, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func withConfig(t *testing.T, apiAddr string) {
	t.Helper()
	c := config.DefaultConfig()
	c.APIAddr = apiAddr
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func runCmd(t *testing.T, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	err := run(cmd, args)
	return out.String(), err
}

func TestAccountRegisterAndLogin(t *testing.T) {
	withConfig(t, startTestService(t))

	out, err := runCmd(t, runAccountRegister, "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "User ada registered")

	_, err = runCmd(t, runAccountRegister, "ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")

	out, err = runCmd(t, runAccountLogin, "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada")
	assert.Contains(t, out, "Best time: N/A")
}

func TestAccountLogin_UnknownUser(t *testing.T) {
	withConfig(t, startTestService(t))

	_, err := runCmd(t, runAccountLogin, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register first")
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("REFLEX_API_ADDR", "http://env.example:3002")
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	envFile = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { configPath, envFile = "", "" })

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&apiAddr, "api", "", "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")

	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, "http://env.example:3002", cfg.APIAddr)

	require.NoError(t, cmd.Flags().Set("api", "http://flag.example:4000"))
	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, "http://flag.example:4000", cfg.APIAddr)

	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	assert.Error(t, loadConfig(cmd))
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("http://127.0.0.1:3002"))
	assert.True(t, isLocal("http://localhost:3002"))
	assert.False(t, isLocal("https://scores.example.com"))
	assert.False(t, isLocal("::not a url"))
}

func TestAudit_ListsEntries(t *testing.T) {
	withConfig(t, startTestService(t))

	out, err := runCmd(t, runAudit)
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries.")

	_, err = runCmd(t, runAccountRegister, "ada")
	require.NoError(t, err)
	_, err = runCmd(t, runAccountRegister, "bob")
	require.NoError(t, err)

	out, err = runCmd(t, runAudit, "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "user.register")
	assert.Contains(t, out, "ada")
	assert.NotContains(t, out, "bob")

	out, err = runCmd(t, runAudit)
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
}

func TestConfigInit(t *testing.T) {
	withConfig(t, "https://scores.example")
	configPath = filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Cleanup(func() { configPath, forceInit = "", false })

	out, err := runCmd(t, runConfigInit)
	require.NoError(t, err)
	assert.Contains(t, out, configPath)

	saved, err := config.LoadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://scores.example", saved.APIAddr)

	// An existing file is kept unless forced
	_, err = runCmd(t, runConfigInit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	cfg.APIAddr = "https://other.example"
	forceInit = true
	_, err = runCmd(t, runConfigInit)
	require.NoError(t, err)

	saved, err = config.LoadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example", saved.APIAddr)
}

func TestServeArgs_ForwardsSettingsFiles(t *testing.T) {
	t.Cleanup(func() { configPath, envFile = "", "" })

	configPath, envFile = "", ""
	assert.Equal(t, []string{"serve", "--listen", "127.0.0.1:3002"}, serveArgs("127.0.0.1:3002"))

	configPath = "/etc/reflex.yaml"
	envFile = "/etc/reflex.env"
	assert.Equal(t,
		[]string{"serve", "--listen", "127.0.0.1:3002", "--config", "/etc/reflex.yaml", "--env-file", "/etc/reflex.env"},
		serveArgs("127.0.0.1:3002"))
}
