// Package keys loads local SSH private keys and provisions their public
// halves onto the authorized keys of remote hosts.
package keys

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
)

// Key is a loaded private key.
type Key struct {
	// Path is the file the key was loaded from.
	Path string
	ssh.Signer
}

// Load reads and parses the private key at path. A leading "~" is
// resolved to the home directory. The passphrase is only used if it is
// not empty.
func Load(path string, passphrase string) (*Key, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("no key file specified")}
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	keyBytes, err := os.ReadFile(expanded)
	if err != nil {
		return nil, &LoadError{Path: expanded, Err: err}
	}

	key, err := Parse(keyBytes, passphrase)
	if err != nil {
		return nil, &LoadError{Path: expanded, Err: err}
	}
	key.Path = expanded

	return key, nil
}

// Parse parses a PEM encoded private key.
func Parse(keyBytes []byte, passphrase string) (*Key, error) {
	var signer ssh.Signer
	var err error
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		return nil, err
	}

	return &Key{Signer: signer}, nil
}

// AuthorizedKey returns the public key as a single authorized_keys line
// without the trailing newline.
func (k *Key) AuthorizedKey() string {
	return string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(k.PublicKey())))
}

// Fingerprint returns the SHA256 fingerprint of the public key.
func (k *Key) Fingerprint() string {
	return ssh.FingerprintSHA256(k.PublicKey())
}

// PublicKeyPath returns the conventional location of the public key file,
// or an empty string if the key was not loaded from a file.
func (k *Key) PublicKeyPath() string {
	if k.Path == "" {
		return ""
	}
	return k.Path + ".pub"
}
