// Package provision authorizes this computer's SSH key on a board.
package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/eugenetaranov/t2/internal/commands"
	"github.com/eugenetaranov/t2/internal/connector"
	"github.com/eugenetaranov/t2/internal/errs"
	"github.com/eugenetaranov/t2/internal/executor"
)

// AuthorizedKeysPath is the authorized keys file of the board's SSH daemon.
const AuthorizedKeysPath = "/etc/dropbear/authorized_keys"

// Logger receives the user-facing messages of provisioning.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Outcome reports what Provision did.
type Outcome int

const (
	// Appended means the key was added to the board.
	Appended Outcome = iota
	// AlreadyPresent means the board already trusted the key.
	AlreadyPresent
)

func (o Outcome) String() string {
	if o == AlreadyPresent {
		return "already present"
	}
	return "appended"
}

// Config holds the location of the local key pair.
type Config struct {
	// KeyRoot is the directory holding id_rsa and id_rsa.pub.
	KeyRoot string
}

// DefaultKeyRoot returns ~/.tessel.
func DefaultKeyRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tessel"
	}
	return filepath.Join(home, ".tessel")
}

// Provisioner installs the local public key into the board's authorized keys.
type Provisioner struct {
	exec *executor.Executor
	keys KeyPair
	log  Logger
}

// New creates a provisioner. An empty key root falls back to DefaultKeyRoot.
func New(exec *executor.Executor, cfg Config, log Logger) *Provisioner {
	if cfg.KeyRoot == "" {
		cfg.KeyRoot = DefaultKeyRoot()
	}
	return &Provisioner{exec: exec, keys: KeyPairAt(cfg.KeyRoot), log: log}
}

// KeyPair returns the key pair currently in use.
func (p *Provisioner) KeyPair() KeyPair {
	return p.keys
}

// Provision makes sure a local key pair exists and that the board trusts
// its public half. Calling it again is harmless.
func (p *Provisioner) Provision(ctx context.Context) (Outcome, error) {
	const op = errs.Op("provision")

	if p.exec.Connector().Kind() != connector.KindUSB {
		return 0, errs.E(op, errs.KindValidation, "Tessel must be connected with USB to use this command.")
	}

	keys, err := p.setupLocal()
	if err != nil {
		return 0, errs.E(op, err)
	}

	pub, err := os.ReadFile(keys.Public)
	if err != nil {
		return 0, errs.E(op, errs.KindOther, "read public key", err)
	}
	key := strings.TrimSpace(string(pub))

	if _, err := p.exec.Buffered(ctx, commands.EnsureFileExists(AuthorizedKeysPath)); err != nil {
		return 0, errs.E(op, err)
	}

	authorized, err := p.exec.BufferedRaw(ctx, commands.ReadFile(AuthorizedKeysPath))
	if err != nil {
		return 0, errs.E(op, err)
	}

	if strings.Contains(authorized, key) {
		p.log.Info("Tessel is already authenticated with this computer.")
		return AlreadyPresent, nil
	}

	entry := key + "\n"
	if authorized != "" && !strings.HasSuffix(authorized, "\n") {
		entry = "\n" + entry
	}
	if err := p.appendKey(ctx, entry); err != nil {
		return 0, errs.E(op, err)
	}

	p.log.Info("Tessel authenticated with public key.")
	return Appended, nil
}

// appendKey streams entry into the authorized keys file.
func (p *Provisioner) appendKey(ctx context.Context, entry string) error {
	proc, err := p.exec.Streaming(ctx, commands.AppendStdinToFile(AuthorizedKeysPath))
	if err != nil {
		return err
	}

	stdin := proc.Stdin()
	if _, err := stdin.Write([]byte(entry)); err != nil {
		_ = proc.Close()
		return errs.E(errs.KindTransport, "write public key", err)
	}
	if err := stdin.Close(); err != nil {
		_ = proc.Close()
		return errs.E(errs.KindTransport, "close stdin", err)
	}

	_, err = p.exec.Receive(ctx, proc)
	return err
}

// SetDefaultKey points the provisioner at the key pair at path and
// path.pub. Both must be regular files. Later provisioning uses this pair
// and no longer generates keys.
func (p *Provisioner) SetDefaultKey(path string) error {
	const op = errs.Op("key.set")

	if path == "" {
		return errs.E(op, errs.KindValidation, "No key provided to set as default.")
	}

	keys := KeyPair{Private: path, Public: path + ".pub"}
	if !keys.Exists() {
		return errs.E(op, errs.KindValidation, path+" does not contain valid public and private SSH keys.")
	}

	p.keys = keys
	return nil
}
