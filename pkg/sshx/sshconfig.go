package sshx

import (
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/kevinburke/ssh_config"
	"github.com/mitchellh/go-homedir"
)

// DefaultSSHConfig is the OpenSSH client configuration of the current user.
const DefaultSSHConfig = "~/.ssh/config"

// LoadSSHConfig resolves the host of the configuration as an alias of the
// OpenSSH client configuration file. A missing file is not an error.
func LoadSSHConfig(config *Config, path string) error {
	if path == "" {
		path = DefaultSSHConfig
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	return ResolveAlias(config, file)
}

// ResolveAlias fills the host name, user, port and identity file of the
// configuration from a matching "Host" block. Fields that are already set
// are left untouched.
func ResolveAlias(config *Config, r io.Reader) error {
	sshConfig, err := ssh_config.Decode(r)
	if err != nil {
		return err
	}

	alias := config.Host

	if hostName, _ := sshConfig.Get(alias, "HostName"); hostName != "" {
		config.Host = hostName
	}

	if config.User == "" {
		config.User, _ = sshConfig.Get(alias, "User")
	}

	if config.Port == 0 {
		if port, _ := sshConfig.Get(alias, "Port"); port != "" {
			if config.Port, err = strconv.Atoi(port); err != nil {
				return errors.New("invalid port in ssh config: " + port)
			}
		}
	}

	if config.KeyFile == "" && config.Key == "" {
		config.KeyFile, _ = sshConfig.Get(alias, "IdentityFile")
	}

	if strict, _ := sshConfig.Get(alias, "StrictHostKeyChecking"); strict == "no" {
		config.InsecureIgnoreHostKey = true
	}

	return nil
}
