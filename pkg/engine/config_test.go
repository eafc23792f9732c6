package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

const testPlaybook = `ssh:
  host: example.com
  user: deploy
  port: 3056
  key-file: ~/.ssh/id_ed25519
remote-path: /srv/app
timeout: 10s
command-timeout: 1m
abort-on-failure: true
uploads:
  - site/
commands:
  - systemctl restart app
downloads:
  - app.log
`

// clearEnv unsets the variables for the duration of the test.
func clearEnv(t *testing.T, names ...string) {
	t.Helper()

	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func clearRemoteEnv(t *testing.T) {
	clearEnv(t, "REMOTE_HOST", "REMOTE_USERNAME", "REMOTE_PORT", "SSH_KEY", "REMOTE_PATH")
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestReadConfig(t *testing.T) {
	t.Parallel()

	config, err := ReadConfig(writeFile(t, "sshclient.yml", testPlaybook))
	require.NoError(t, err)

	assert.Equal(t, "example.com", config.SSH.Host)
	assert.Equal(t, 3056, config.SSH.Port)
	assert.Equal(t, "~/.ssh/id_ed25519", config.SSH.KeyFile)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, time.Minute, config.CommandTimeout)
	assert.True(t, config.AbortOnFailure)
	assert.Equal(t, []string{"site/"}, config.Uploads)
	assert.Equal(t, []string{"systemctl restart app"}, config.Commands)
	assert.Equal(t, []string{"app.log"}, config.Downloads)

	_, err = ReadConfig(writeFile(t, "broken.yml", "ssh: ["))
	assert.Error(t, err)

	_, err = ReadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig(t *testing.T) {
	t.Run("layers", func(t *testing.T) {
		clearRemoteEnv(t)
		t.Setenv("REMOTE_PATH", "/srv/env")

		config, err := LoadConfig(writeFile(t, "sshclient.yml", testPlaybook), "", Config{
			SSH: sshx.Config{User: "admin"},
		})
		require.NoError(t, err)

		assert.Equal(t, "example.com", config.SSH.Host)
		assert.Equal(t, "admin", config.SSH.User, "overrides take precedence")
		assert.Equal(t, "/srv/env", config.RemotePath, "environment takes precedence over the file")
		assert.Equal(t, 3056, config.SSH.Port)
		assert.Equal(t, DefaultLocalPath, config.LocalPath)
		assert.Equal(t, keys.ProvisionerCopyID, config.Provisioner)
		assert.Equal(t, 10*time.Second, config.Timeout)
		assert.NoError(t, config.Verify())
	})

	t.Run("environment only", func(t *testing.T) {
		clearRemoteEnv(t)
		t.Setenv("REMOTE_HOST", "203.0.113.10")
		t.Setenv("REMOTE_USERNAME", "deploy")
		t.Setenv("REMOTE_PORT", "3056")
		t.Setenv("SSH_KEY", "/keys/id_rsa")

		config, err := LoadConfig("", "")
		require.NoError(t, err)

		assert.Equal(t, "203.0.113.10", config.SSH.Host)
		assert.Equal(t, "deploy", config.SSH.User)
		assert.Equal(t, 3056, config.SSH.Port)
		assert.Equal(t, "/keys/id_rsa", config.SSH.KeyFile)
		assert.Equal(t, 5*time.Second, config.Timeout)
	})

	t.Run("dotenv", func(t *testing.T) {
		clearRemoteEnv(t)
		t.Setenv("REMOTE_USERNAME", "from-env")

		envFile := writeFile(t, ".env", "REMOTE_HOST=192.0.2.1\nREMOTE_USERNAME=from-dotenv\n")

		config, err := LoadConfig("", envFile)
		require.NoError(t, err)

		assert.Equal(t, "192.0.2.1", config.SSH.Host)
		assert.Equal(t, "from-env", config.SSH.User, "dotenv does not overwrite the environment")
	})

	t.Run("missing dotenv", func(t *testing.T) {
		clearRemoteEnv(t)

		config, err := LoadConfig("", filepath.Join(t.TempDir(), ".env"))
		require.NoError(t, err)
		assert.Error(t, config.Verify(), "no host configured")
	})

	t.Run("invalid port", func(t *testing.T) {
		clearRemoteEnv(t)
		t.Setenv("REMOTE_PORT", "ssh")

		_, err := LoadConfig("", "")
		assert.Error(t, err)
	})
}

func TestConfig_Verify(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		config := DefaultConfig()
		config.SSH = sshx.Config{Host: "example.com", User: "deploy", Port: 22}
		return &config
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no host", mutate: func(c *Config) { c.SSH.Host = "" }, wantErr: "no host specified"},
		{name: "unknown provisioner", mutate: func(c *Config) { c.Provisioner = "scp" }, wantErr: "unsupported provisioner"},
		{name: "negative timeout", mutate: func(c *Config) { c.CommandTimeout = -time.Second }, wantErr: "must not be negative"},
		{name: "invalid proxy", mutate: func(c *Config) { c.SSHProxy = sshx.Config{Host: "bastion", Port: 70000} }, wantErr: "invalid ssh-proxy"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := valid()
			tt.mutate(config)

			err := config.Verify()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	var nilConfig *Config
	assert.Error(t, nilConfig.Verify())
}
