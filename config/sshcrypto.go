package config

import (
	"bytes"
	"os"
	"path/filepath"
)

// sshKeyNames are the private keys looked for in ~/.ssh, most preferred
// first. Only ed25519 and rsa keys derive a stable encryption key.
var sshKeyNames = []string{
	"toolchat_ed25519",
	"id_ed25519",
	"id_rsa",
}

// FindSSHKeys returns the usable private keys in ~/.ssh.
func FindSSHKeys() []string {
	return findSSHKeys(filepath.Join(GetHomeDir(), ".ssh"))
}

func findSSHKeys(sshDir string) []string {
	var found []string
	for _, name := range sshKeyNames {
		path := filepath.Join(sshDir, name)
		if isPrivateKey(path) {
			found = append(found, path)
		}
	}
	return found
}

// DefaultSSHKeyPath is the key used for credential encryption when the
// config names none, or "" when ~/.ssh has no usable key.
func DefaultSSHKeyPath() string {
	keys := FindSSHKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func isPrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte("BEGIN")) && bytes.Contains(data, []byte("PRIVATE KEY"))
}
