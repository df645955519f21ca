package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liamg/stormscan/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEnvironmentDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "env.yaml", `
provider:
  type: hcloud
  api_token_env: TEST_HCLOUD_TOKEN
  vm_model: cx22
  vm_os_image: debian-12
`)

	env, err := LoadEnvironment(path)
	require.NoError(t, err)

	assert.Equal(t, "cx22", env.Provider.VMModel)
	assert.Equal(t, "debian-12", env.Provider.VMOSImage)
	assert.Equal(t, "root", env.SSH.User)
	assert.Equal(t, 22, env.SSH.Port)
	assert.Equal(t, 5, env.Readiness.Attempts)
	assert.Equal(t, 5*time.Second, env.Readiness.Interval)
	assert.False(t, env.Readiness.Strict)
	assert.Equal(t, 6*time.Hour, env.Execution.CommandTimeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "env.yaml", `
provider:
  type: hetzner_cloud
  api_token_env: TEST_HCLOUD_TOKEN
  vm_model: cx32
  vm_os_image: ubuntu-24.04
readiness:
  attempts: 10
  interval: 2s
  strict: true
execution:
  command_timeout: 30m
journal:
  path: /var/lib/stormscan/journal.db
`)

	env, err := LoadEnvironment(path)
	require.NoError(t, err)

	assert.Equal(t, 10, env.Readiness.Attempts)
	assert.Equal(t, 2*time.Second, env.Readiness.Interval)
	assert.True(t, env.Readiness.Strict)
	assert.Equal(t, 30*time.Minute, env.Execution.CommandTimeout)
	assert.Equal(t, "/var/lib/stormscan/journal.db", env.Journal.Path)
}

func TestLoadEnvironmentRejectsUnknownProvider(t *testing.T) {
	path := writeFile(t, t.TempDir(), "env.yaml", `
provider:
  type: aws
  api_token_env: AWS_TOKEN
`)

	_, err := LoadEnvironment(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.Contains(t, err.Error(), "unsupported provider type")
}

func TestLoadEnvironmentMissingFile(t *testing.T) {
	_, err := LoadEnvironment(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, failure.ErrConfig)
}

func TestAPIToken(t *testing.T) {
	env := &Environment{Provider: Provider{APITokenEnv: "STORMSCAN_TEST_TOKEN"}}

	t.Setenv("STORMSCAN_TEST_TOKEN", "")
	_, err := env.APIToken()
	assert.ErrorIs(t, err, failure.ErrConfig)

	t.Setenv("STORMSCAN_TEST_TOKEN", "secret")
	token, err := env.APIToken()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".env", "STORMSCAN_DOTENV_TOKEN=from-file\n")
	t.Setenv("STORMSCAN_DOTENV_TOKEN", "")
	require.NoError(t, os.Unsetenv("STORMSCAN_DOTENV_TOKEN"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("STORMSCAN_DOTENV_TOKEN"))

	assert.NoError(t, LoadDotEnv(""))
	assert.ErrorIs(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope")), failure.ErrConfig)
}

func TestLoadAccounts(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "keys.yaml", `
- name: production
  token: abc
- name: staging
  token: def
`)
	accounts, err := LoadAccounts(path)
	require.NoError(t, err)
	assert.Equal(t, []Account{{Name: "production", Token: "abc"}, {Name: "staging", Token: "def"}}, accounts)

	dup := writeFile(t, dir, "dup.yaml", "- {name: a, token: x}\n- {name: a, token: y}\n")
	_, err = LoadAccounts(dup)
	assert.ErrorIs(t, err, failure.ErrConfig)

	missing := writeFile(t, dir, "missing.yaml", "- {name: a}\n")
	_, err = LoadAccounts(missing)
	assert.ErrorIs(t, err, failure.ErrConfig)
}

func TestNewSession(t *testing.T) {
	dir := t.TempDir()
	env := &Environment{
		Provider:  Provider{Type: ProviderHCloud, VMModel: "cx22", VMOSImage: "debian-12"},
		SSH:       SSH{User: "root", Port: 22},
		Readiness: Readiness{Attempts: 5, Interval: time.Second},
	}
	targets := writeFile(t, dir, "targets.list", "10.0.0.1\n")
	keys := writeFile(t, dir, "keys.yaml", "- {name: p, token: t}\n")
	pub := writeFile(t, dir, "id.pub", "ssh-ed25519 AAAA test\n")
	priv := writeFile(t, dir, "id", "private")

	opts := SessionOptions{
		TargetFile:     targets,
		OutputDir:      dir,
		PublicKeyPath:  pub,
		PrivateKeyPath: priv,
	}

	session, err := NewSession(env, opts)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA test", session.PublicKey)
	assert.True(t, session.Resolve)
	assert.Empty(t, session.Accounts)

	both := opts
	both.APIKeysFile = keys
	_, err = NewSession(env, both)
	assert.ErrorIs(t, err, failure.ErrConfig)

	neither := opts
	neither.TargetFile = ""
	_, err = NewSession(env, neither)
	assert.ErrorIs(t, err, failure.ErrConfig)

	accounts := opts
	accounts.TargetFile = ""
	accounts.APIKeysFile = keys
	accounts.NoResolve = true
	session, err = NewSession(env, accounts)
	require.NoError(t, err)
	assert.False(t, session.Resolve)
	assert.Equal(t, []Account{{Name: "p", Token: "t"}}, session.Accounts)

	badOutput := opts
	badOutput.OutputDir = targets
	_, err = NewSession(env, badOutput)
	assert.ErrorIs(t, err, failure.ErrConfig)
}
