package config

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeEd25519Key(t *testing.T, dir, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestCredentialStore_PlainText(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, store.Load(dir))
	assert.Empty(t, store.Get("opsgenie"))

	store.Set("opsgenie", "genie-key")
	store.Set("hyperbolic", "hb-key")
	require.NoError(t, store.Save(dir))

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, "genie-key", reloaded.Get("opsgenie"))
	assert.Equal(t, "hb-key", reloaded.Get("hyperbolic"))

	reloaded.Delete("opsgenie")
	assert.Empty(t, reloaded.Get("opsgenie"))
}

func TestCredentialStore_SSHKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeEd25519Key(t, dir, "")

	store := NewCredentialStore(SecuritySSHKey, keyPath)
	require.NoError(t, store.Load(dir))
	store.Set("confluence", "atlassian-token")
	require.NoError(t, store.Save(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "atlassian-token")

	reloaded := NewCredentialStore(SecuritySSHKey, keyPath)
	require.NoError(t, reloaded.Load(dir))
	assert.Equal(t, "atlassian-token", reloaded.Get("confluence"))
}

func TestLoadSSHSigner(t *testing.T) {
	t.Run("encrypted key needs passphrase", func(t *testing.T) {
		keyPath := writeEd25519Key(t, t.TempDir(), "s3cret")

		_, err := LoadSSHSigner(keyPath, "")
		assert.ErrorIs(t, err, ErrPassphraseRequired)

		_, err = LoadSSHSigner(keyPath, "wrong")
		assert.Error(t, err)

		signer, err := LoadSSHSigner(keyPath, "s3cret")
		require.NoError(t, err)
		assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())
	})

	t.Run("ecdsa rejected", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		block, err := ssh.MarshalPrivateKey(priv, "test")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "id_ecdsa")
		require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

		_, err = LoadSSHSigner(path, "")
		assert.ErrorContains(t, err, "unsupported SSH key type")
	})

	t.Run("derived key is stable", func(t *testing.T) {
		keyPath := writeEd25519Key(t, t.TempDir(), "")
		signer, err := LoadSSHSigner(keyPath, "")
		require.NoError(t, err)

		k1, err := DeriveAESKeyFromSSH(signer)
		require.NoError(t, err)
		k2, err := DeriveAESKeyFromSSH(signer)
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
		assert.Len(t, k1, 32)
	})
}

func TestFindSSHKeys(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, findSSHKeys(dir))

	keyPath := writeEd25519Key(t, dir, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_rsa"), []byte("not a key"), 0600))

	assert.Equal(t, []string{keyPath}, findSSHKeys(dir))
}

func TestConfig_SetAndDeleteSecret(t *testing.T) {
	tests := []struct {
		name    string
		storage SecurityMethod
		file    string
	}{
		{name: "plaintext", storage: SecurityPlainText, file: "credentials.toml"},
		{name: "ssh key", storage: SecuritySSHKey, file: "credentials.enc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var keyPath string
			if tt.storage == SecuritySSHKey {
				keyPath = writeEd25519Key(t, t.TempDir(), "")
			}

			cfg := Default()
			cfg.DataDirectory = dir
			cfg.Security = SecurityConfig{CredentialStorage: string(tt.storage), SSHKeyPath: keyPath}
			cfg.CredentialStore = NewCredentialStore(tt.storage, keyPath)

			require.NoError(t, cfg.SetSecret("opsgenie", "genie-key"))
			require.NoError(t, cfg.SetSecret("confluence", "atlassian-token"))

			raw, err := os.ReadFile(filepath.Join(dir, tt.file))
			require.NoError(t, err)
			if tt.storage == SecuritySSHKey {
				assert.NotContains(t, string(raw), "genie-key")
			}

			reloaded := NewCredentialStore(tt.storage, keyPath)
			require.NoError(t, reloaded.Load(dir))
			assert.Equal(t, []string{"confluence", "opsgenie"}, reloaded.Names())
			assert.Equal(t, "genie-key", reloaded.Get("opsgenie"))

			require.NoError(t, cfg.DeleteSecret("opsgenie"))
			require.ErrorIs(t, cfg.DeleteSecret("opsgenie"), ErrCredentialNotFound)
			require.Error(t, cfg.SetSecret("", "x"))

			reloaded = NewCredentialStore(tt.storage, keyPath)
			require.NoError(t, reloaded.Load(dir))
			assert.Equal(t, []string{"confluence"}, reloaded.Names())
		})
	}
}
