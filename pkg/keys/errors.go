package keys

import (
	"errors"
	"fmt"
)

// ErrProvisionSkipped is returned by provisioners that deliberately did
// not touch the remote host.
var ErrProvisionSkipped = errors.New("key provisioning skipped")

// LoadError is returned if a private key is missing, unreadable or
// cannot be parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load key %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ProvisionError is returned if a public key could not be added to the
// authorized keys of a remote host.
type ProvisionError struct {
	// Target is the "user@host:port" the key was provisioned for.
	Target string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision key for %s: %v", e.Target, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
