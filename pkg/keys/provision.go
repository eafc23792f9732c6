package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

const (
	// ProvisionerCopyID shells out to ssh-copy-id.
	ProvisionerCopyID = "ssh-copy-id"
	// ProvisionerSSH appends the key over an SSH side channel.
	ProvisionerSSH = "ssh"
	// ProvisionerNone disables provisioning.
	ProvisionerNone = "none"
)

// Provisioners lists the names accepted by NewProvisioner.
var Provisioners = []string{ProvisionerCopyID, ProvisionerSSH, ProvisionerNone}

// Provisioner adds a public key to the authorized keys of a remote host.
// Implementations must be idempotent.
type Provisioner interface {
	Provision(ctx context.Context, target *sshx.Config, key *Key) error
}

// NewProvisioner returns the provisioner registered under name. An empty
// name selects ssh-copy-id.
func NewProvisioner(name string, options ...Option) (Provisioner, error) {
	switch name {
	case "", ProvisionerCopyID:
		return NewCopyIDProvisioner(options...)
	case ProvisionerSSH:
		return NewSSHProvisioner(options...)
	case ProvisionerNone:
		return NopProvisioner{}, nil
	default:
		return nil, errors.New("unsupported provisioner must be one of: " + strings.Join(Provisioners, ", "))
	}
}

// NopProvisioner does not provision anything. It always returns
// ErrProvisionSkipped.
type NopProvisioner struct{}

// Provision implements Provisioner.
func (NopProvisioner) Provision(context.Context, *sshx.Config, *Key) error {
	return ErrProvisionSkipped
}

// CopyIDProvisioner provisions keys by running ssh-copy-id.
type CopyIDProvisioner struct {
	*Options
}

// NewCopyIDProvisioner creates a provisioner that uses ssh-copy-id.
func NewCopyIDProvisioner(options ...Option) (*CopyIDProvisioner, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &CopyIDProvisioner{Options: opts}, nil
}

// Provision implements Provisioner.
func (p *CopyIDProvisioner) Provision(ctx context.Context, target *sshx.Config, key *Key) error {
	if key == nil {
		return &ProvisionError{Target: targetName(target), Err: errors.New("no key loaded")}
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	argv, err := shlex.Split(p.Binary)
	if err != nil || len(argv) == 0 {
		return &ProvisionError{Target: targetName(target), Err: fmt.Errorf("invalid key copy command %q: %v", p.Binary, err)}
	}
	binary := argv[0]
	args := append(argv[1:], "-o", "StrictHostKeyChecking=accept-new")

	// ssh-copy-id insists on a private key next to the public key unless
	// forced, so a generated public key file is copied with -f.
	// Inline keys have no file next to them.
	publicKeyPath := key.PublicKeyPath()
	if _, err := os.Stat(publicKeyPath); publicKeyPath == "" || err != nil {
		dir, err := os.MkdirTemp("", "sshclient-")
		if err != nil {
			return &ProvisionError{Target: targetName(target), Err: err}
		}
		defer os.RemoveAll(dir)

		publicKeyPath = filepath.Join(dir, "id.pub")
		if err := os.WriteFile(publicKeyPath, []byte(key.AuthorizedKey()+"\n"), 0600); err != nil {
			return &ProvisionError{Target: targetName(target), Err: err}
		}
		args = append(args, "-f")
	}

	if p.Proxy != nil && p.Proxy.Host != "" {
		jump := p.Proxy.Address()
		if p.Proxy.User != "" {
			jump = p.Proxy.User + "@" + jump
		}
		args = append(args, "-o", "ProxyJump="+jump)
	}
	if target.Port != 0 {
		args = append(args, "-p", strconv.Itoa(target.Port))
	}
	args = append(args, "-i", publicKeyPath, target.User+"@"+target.Host)

	p.Logger.Debug().Str("binary", binary).Strs("args", args).Msg("Running key copy utility")

	output, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		return &ProvisionError{
			Target: targetName(target),
			Err:    fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(string(output))),
		}
	}

	return nil
}

// SSHProvisioner provisions keys by appending them to the authorized keys
// over an SSH connection that is authenticated by other means, such as a
// password or the SSH agent.
type SSHProvisioner struct {
	*Options
}

// NewSSHProvisioner creates a provisioner that uses an SSH side channel.
func NewSSHProvisioner(options ...Option) (*SSHProvisioner, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &SSHProvisioner{Options: opts}, nil
}

// Provision implements Provisioner.
func (p *SSHProvisioner) Provision(ctx context.Context, target *sshx.Config, key *Key) error {
	if key == nil {
		return &ProvisionError{Target: targetName(target), Err: errors.New("no key loaded")}
	}

	// The side channel must not depend on the key being provisioned.
	sideChannel := *target
	sideChannel.Key = ""
	sideChannel.KeyFile = ""
	sideChannel.Passphrase = ""

	options := []sshx.Option{
		sshx.WithLogger(p.Logger),
		sshx.WithTimeout(p.Timeout),
		sshx.WithAgent(p.Agent),
	}

	if p.Proxy != nil && p.Proxy.Host != "" {
		proxyConfig := *p.Proxy
		proxy, err := sshx.NewClient(ctx, &proxyConfig, options...)
		if err != nil {
			return &ProvisionError{Target: targetName(target), Err: fmt.Errorf("failed to connect to proxy: %w", err)}
		}
		defer proxy.Close()

		options = append(options, sshx.WithProxy(proxy))
	}

	client, err := sshx.NewClient(ctx, &sideChannel, options...)
	if err != nil {
		return &ProvisionError{Target: targetName(target), Err: err}
	}
	defer client.Close()

	stderr := new(bytes.Buffer)
	if err := client.Do(ctx, sshx.Cmd{
		Cmd:    AuthorizeScript(key.AuthorizedKey()),
		Shell:  true,
		Stderr: stderr,
	}); err != nil {
		return &ProvisionError{
			Target: targetName(target),
			Err:    fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	return nil
}

// AuthorizeScript returns a shell script that appends the authorized key
// line to ~/.ssh/authorized_keys unless it is already present.
func AuthorizeScript(authorizedKey string) string {
	quoted := "'" + strings.ReplaceAll(authorizedKey, "'", `'\''`) + "'"

	return "umask 077 && mkdir -p ~/.ssh && touch ~/.ssh/authorized_keys && " +
		"{ grep -qxF " + quoted + " ~/.ssh/authorized_keys || " +
		"echo " + quoted + " >> ~/.ssh/authorized_keys; }"
}

func targetName(target *sshx.Config) string {
	return target.User + "@" + target.Address()
}
