package sshx

import (
	"errors"
	"net"
	"strconv"
)

const (
	// DefaultPort is the port used if none is configured.
	DefaultPort = 22
	// DefaultKnownHosts is the file used to remember host keys.
	DefaultKnownHosts = "~/.ssh/known_hosts"
)

// Config is a flat configuration for an SSH connection.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	KeyFile     string `yaml:"key-file"`
	Key         string `yaml:"key"`
	Passphrase  string `yaml:"passphrase"`
	Fingerprint string `yaml:"fingerprint"`
	KnownHosts  string `yaml:"known-hosts"`
	// InsecureIgnoreHostKey disables host key checks entirely.
	InsecureIgnoreHostKey bool `yaml:"insecure-ignore-host-key"`
}

// SetDefaults fills in the connection defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.KnownHosts == "" {
		c.KnownHosts = DefaultKnownHosts
	}
}

// Verify checks that the configuration identifies a target.
func (c *Config) Verify() error {
	if c == nil {
		return errors.New("ssh configuration empty")
	}
	if c.Host == "" {
		return errors.New("no host specified")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("port out of range: " + strconv.Itoa(c.Port))
	}
	return nil
}

// Address returns the "host:port" address of the target.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}
