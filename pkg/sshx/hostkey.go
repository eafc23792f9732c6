package sshx

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyCallback configures host key verification. A pinned fingerprint
// is checked strictly. Otherwise keys are checked against the known hosts
// file, and keys of hosts that are not listed yet are accepted and added
// to it. Changed keys of known hosts are always rejected.
func HostKeyCallback(config *Config, logger *zerolog.Logger) (ssh.HostKeyCallback, error) {
	if config.Fingerprint != "" {
		return func(hostname string, remote net.Addr, pubKey ssh.PublicKey) error {
			fingerprint := ssh.FingerprintSHA256(pubKey)
			if config.Fingerprint != fingerprint {
				return fmt.Errorf("fingerprint mismatch: server fingerprint: %s", fingerprint)
			}
			return nil
		}, nil
	}

	if config.InsecureIgnoreHostKey {
		logger.Warn().Msg("Skipping host key verification is insecure!")
		logger.Warn().Msg("This allows for person-in-the-middle attacks!")
		logger.Warn().Msg("Please consider using fingerprint verification!")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	knownHostsFile := config.KnownHosts
	if knownHostsFile == "" {
		knownHostsFile = DefaultKnownHosts
	}
	path, err := homedir.Expand(knownHostsFile)
	if err != nil {
		return nil, err
	}

	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("failed to prepare known hosts file: %w", err)
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, pubKey ssh.PublicKey) error {
		err := check(hostname, remote, pubKey)

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		// The host is unknown, so we trust it on first use.
		if err := appendKnownHost(path, hostname, pubKey); err != nil {
			return err
		}
		logger.Warn().
			Str("host", hostname).
			Str("fingerprint", ssh.FingerprintSHA256(pubKey)).
			Msg("Added new host key to known hosts")

		return nil
	}, nil
}

// appendKnownHost adds a host key entry to the known hosts file.
func appendKnownHost(path string, hostname string, pubKey ssh.PublicKey) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts: %w", err)
	}
	defer file.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, pubKey)
	if _, err := file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write known hosts: %w", err)
	}

	return nil
}

// ensureFile creates an empty file and its parent directory if they do
// not exist yet.
func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return err
	}

	return file.Close()
}
