package provision

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/eugenetaranov/t2/internal/errs"
)

const keyBits = 2048

// KeyPair locates a private key and its public half on the local disk.
type KeyPair struct {
	Private string
	Public  string
}

// KeyPairAt returns the id_rsa pair under root.
func KeyPairAt(root string) KeyPair {
	private := filepath.Join(root, "id_rsa")
	return KeyPair{Private: private, Public: private + ".pub"}
}

// Exists reports whether both halves are regular files.
func (k KeyPair) Exists() bool {
	return isFile(k.Private) && isFile(k.Public)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// setupLocal returns the key pair, generating it first when either half is
// missing.
func (p *Provisioner) setupLocal() (KeyPair, error) {
	const op = errs.Op("provision.keys")

	keys := p.keys
	if keys.Exists() {
		return keys, nil
	}

	p.log.Info("Creating public and private keys for Tessel authentication...")

	private, public, err := generateKeyPair()
	if err != nil {
		return keys, errs.E(op, "generate key pair", err)
	}

	if err := writeKeyPair(keys, private, public); err != nil {
		p.log.Warn("Unable to write SSH keys: %v", err)
		return keys, errs.E(op, "write key pair", err)
	}

	p.log.Info("SSH Keys written.")
	return keys, nil
}

// generateKeyPair returns a PEM encoded RSA private key and its public key
// in authorized_keys format.
func generateKeyPair() (private, public []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, err
	}

	private = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	return private, ssh.MarshalAuthorizedKey(pub), nil
}

// writeKeyPair writes both halves or neither.
func writeKeyPair(keys KeyPair, private, public []byte) error {
	if err := os.MkdirAll(filepath.Dir(keys.Private), 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(keys.Public), 0o700); err != nil {
		return err
	}

	if err := os.WriteFile(keys.Private, private, 0o600); err != nil {
		return errors.Join(err, removeIfExists(keys.Private))
	}
	if err := os.WriteFile(keys.Public, public, 0o600); err != nil {
		return errors.Join(err, removeIfExists(keys.Private), removeIfExists(keys.Public))
	}
	return nil
}

// removeIfExists removes path when it is a regular file.
func removeIfExists(path string) error {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	return os.Remove(path)
}
