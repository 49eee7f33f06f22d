package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"sync"
)

// ownerOnly fails when the file is missing or readable by group or others.
func ownerOnly(keyfile string) error {
	info, err := os.Stat(keyfile)
	if err != nil {
		return err
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("key file %s is accessible to group or others (%o)", keyfile, perm)
	}

	return nil
}

func writeKeyfile(keyfile string, data []byte) error {
	if err := os.MkdirAll(path.Dir(keyfile), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(keyfile, data, 0600)
}

// SimpleKeyfile stores the node key as the hex dump of its scalar, without
// encryption.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile ...
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{keyfile: keyfile}
}

// CheckFileInfo verifies that the file exists and is accessible to its owner
// only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	return ownerOnly(k.keyfile)
}

// ReadKey parses the key written by WriteKey. Surrounding whitespace is
// ignored.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := ownerOnly(k.keyfile); err != nil {
		return nil, err
	}

	buf, err := ioutil.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, fmt.Errorf("decoding key file %s: %w", k.keyfile, err)
	}

	return ParsePrivateKey(raw)
}

// WriteKey creates the file, and its directory, accessible to the owner only.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	return writeKeyfile(k.keyfile, []byte(PrivateKeyHex(key)))
}
