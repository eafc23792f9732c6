package engine

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

const (
	// DefaultLocalPath is the directory downloads are written to.
	DefaultLocalPath = "data"
	// DefaultEnvFile is the dotenv file that is read if it exists.
	DefaultEnvFile = ".env"
)

// Config describes a playbook that is run against a single remote
// host: files to upload, commands to execute and files to download.
type Config struct {
	// SSH describes the connection to the remote host. The host may
	// also be an alias of the OpenSSH client configuration.
	SSH sshx.Config `yaml:"ssh"`

	// SSHProxy describes the SSH connection configuration
	// for an SSH proxy, often also referred to as bastion
	// host or jumpbox.
	SSHProxy sshx.Config `yaml:"ssh-proxy"`

	// RemotePath is the remote directory uploads are written to and
	// relative downloads are resolved against.
	RemotePath string `yaml:"remote-path"`
	// LocalPath is the local directory downloads are written to.
	LocalPath string `yaml:"local-path"`

	// Provisioner selects how the public key is installed on the
	// remote host. See keys.Provisioners.
	Provisioner string `yaml:"provisioner"`

	Timeout         time.Duration `yaml:"timeout"`
	CommandTimeout  time.Duration `yaml:"command-timeout"`
	TransferTimeout time.Duration `yaml:"transfer-timeout"`
	Retries         int           `yaml:"retries"`
	AbortOnFailure  bool          `yaml:"abort-on-failure"`

	Uploads   []string `yaml:"uploads"`
	Commands  []string `yaml:"commands"`
	Downloads []string `yaml:"downloads"`
}

// Environment holds the settings that may be passed as
// environment variables.
type Environment struct {
	Host       string `envconfig:"REMOTE_HOST"`
	User       string `envconfig:"REMOTE_USERNAME"`
	Port       int    `envconfig:"REMOTE_PORT"`
	KeyFile    string `envconfig:"SSH_KEY"`
	RemotePath string `envconfig:"REMOTE_PATH"`
}

// Config converts the environment into a partial configuration.
func (e Environment) Config() Config {
	return Config{
		SSH: sshx.Config{
			Host:    e.Host,
			User:    e.User,
			Port:    e.Port,
			KeyFile: e.KeyFile,
		},
		RemotePath: e.RemotePath,
	}
}

// DefaultConfig returns the configuration that applies if
// nothing else is specified.
func DefaultConfig() Config {
	return Config{
		LocalPath:   DefaultLocalPath,
		Provisioner: keys.ProvisionerCopyID,
		Timeout:     5 * time.Second,
	}
}

// Verify verifies the configuration.
func (c *Config) Verify() error {
	if c == nil {
		return errors.New("configuration empty")
	}

	if err := c.SSH.Verify(); err != nil {
		return err
	}

	if c.Provisioner != "" && !slices.Contains(keys.Provisioners, c.Provisioner) {
		return errors.New("unsupported provisioner must be one of: " + strings.Join(keys.Provisioners, ", "))
	}

	if c.Timeout < 0 || c.CommandTimeout < 0 || c.TransferTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}

	if c.SSHProxy.Host != "" {
		if err := c.SSHProxy.Verify(); err != nil {
			return fmt.Errorf("invalid ssh-proxy: %w", err)
		}
	}

	return nil
}

// ReadConfig parses the playbook file.
func ReadConfig(configFile string) (*Config, error) {
	configBytes, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	config := new(Config)
	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}

	return config, nil
}

// ReadEnvironment loads the dotenv file, if it exists, and reads the
// environment. Variables that are already set are not overwritten by
// the dotenv file.
func ReadEnvironment(envFile string) (*Environment, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	env := new(Environment)
	if err := envconfig.Process("", env); err != nil {
		return nil, err
	}

	return env, nil
}

// LoadConfig assembles the configuration from the defaults, the
// playbook file, the environment and the overrides, each taking
// precedence over the previous one. An empty path skips the playbook
// file. Host aliases of the OpenSSH client configuration are resolved
// before the connection defaults are applied.
func LoadConfig(configFile string, envFile string, overrides ...Config) (*Config, error) {
	config := DefaultConfig()

	layers := make([]Config, 0, len(overrides)+2)

	if configFile != "" {
		fileConfig, err := ReadConfig(configFile)
		if err != nil {
			return nil, err
		}
		layers = append(layers, *fileConfig)
	}

	env, err := ReadEnvironment(envFile)
	if err != nil {
		return nil, err
	}
	layers = append(layers, env.Config())
	layers = append(layers, overrides...)

	for _, layer := range layers {
		if err := mergo.Merge(&config, layer, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if config.SSH.Host != "" {
		if err := sshx.LoadSSHConfig(&config.SSH, sshx.DefaultSSHConfig); err != nil {
			return nil, fmt.Errorf("failed to read ssh config: %w", err)
		}
	}
	if config.SSHProxy.Host != "" {
		if err := sshx.LoadSSHConfig(&config.SSHProxy, sshx.DefaultSSHConfig); err != nil {
			return nil, fmt.Errorf("failed to read ssh config: %w", err)
		}
		config.SSHProxy.SetDefaults()
	}
	config.SSH.SetDefaults()

	return &config, nil
}
