package commands

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/mscno/avfilter/pkg/identity"
)

func TestEncryptCmdFileInPlace(t *testing.T) {
	t.Setenv(identity.EnvPassword, "test-secret")
	t.Setenv(identity.EnvIdentity, "")

	path := filepath.Join(t.TempDir(), "vars.yml")
	assert.NoError(t, os.WriteFile(path, []byte("db_password: secret123\n"), 0o600))

	cmd := &EncryptCmd{filterFlags: filterFlags{File: path, KeyDir: t.TempDir()}}

	out, errString := captureOutput(func() error {
		return cmd.Run(&cliCtx{Logger: slog.Default()})
	})

	assert.Equal(t, "", errString)
	assert.Contains(t, out, "Toggled")

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "db_password: !vault |")
	assert.NotContains(t, string(data), "secret123")
}

func TestDecryptCmdFileInPlace(t *testing.T) {
	t.Setenv(identity.EnvPassword, "test-secret")
	t.Setenv(identity.EnvIdentity, "")

	path := filepath.Join(t.TempDir(), "vars.yml")
	assert.NoError(t, os.WriteFile(path, []byte("db_password: secret123\n"), 0o600))

	keydir := t.TempDir()
	encrypt := &EncryptCmd{filterFlags: filterFlags{File: path, KeyDir: keydir}}
	_, errString := captureOutput(func() error {
		return encrypt.Run(&cliCtx{Logger: slog.Default()})
	})
	assert.Equal(t, "", errString)

	decrypt := &DecryptCmd{filterFlags: filterFlags{File: path, KeyDir: keydir}}
	_, errString = captureOutput(func() error {
		return decrypt.Run(&cliCtx{Logger: slog.Default()})
	})
	assert.Equal(t, "", errString)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "db_password: secret123\n", string(data))
}

func TestDecryptCmdWrongSecret(t *testing.T) {
	t.Setenv(identity.EnvPassword, "right-secret")
	t.Setenv(identity.EnvIdentity, "")

	path := filepath.Join(t.TempDir(), "vars.yml")
	assert.NoError(t, os.WriteFile(path, []byte("db_password: secret123\n"), 0o600))

	keydir := t.TempDir()
	encrypt := &EncryptCmd{filterFlags: filterFlags{File: path, KeyDir: keydir}}
	_, errString := captureOutput(func() error {
		return encrypt.Run(&cliCtx{Logger: slog.Default()})
	})
	assert.Equal(t, "", errString)
	before, err := os.ReadFile(path)
	assert.NoError(t, err)

	t.Setenv(identity.EnvPassword, "wrong-secret")
	decrypt := &DecryptCmd{filterFlags: filterFlags{File: path, KeyDir: keydir}}
	_, errString = captureOutput(func() error {
		return decrypt.Run(&cliCtx{Logger: slog.Default()})
	})
	assert.Contains(t, errString, "authentication failed")

	// A failed run must leave the file untouched.
	after, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestFilterCmdVaultIDFromKeyringFile(t *testing.T) {
	t.Setenv(identity.EnvPassword, "")
	t.Setenv(identity.EnvPassword+"_STAGING", "")
	t.Setenv(identity.EnvIdentity, "")

	keydir := t.TempDir()
	keyring := "AVFILTER_PASSWORD_STAGING=staging-secret\n"
	assert.NoError(t, os.WriteFile(filepath.Join(keydir, identity.DefaultKeyringFilename), []byte(keyring), 0o600))

	path := filepath.Join(t.TempDir(), "vars.yml")
	assert.NoError(t, os.WriteFile(path, []byte("token: abc\n"), 0o600))

	cmd := &FilterCmd{filterFlags: filterFlags{VaultID: "staging", KeyDir: keydir, File: path}}
	_, errString := captureOutput(func() error {
		return cmd.Run(&cliCtx{Logger: slog.Default()})
	})
	assert.Equal(t, "", errString)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "$ANSIBLE_VAULT;1.2;AES256;staging")
}

func captureOutput(f func() error) (string, string) {
	// Save original stdout and stderr
	oldOut := os.Stdout
	oldErr := os.Stderr

	// Create new pipes to capture output
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()

	os.Stdout = wOut
	os.Stderr = wErr

	// Run function while capturing output
	err := f()
	if err != nil {
		os.Stdout = oldOut
		os.Stderr = oldErr
		wOut.Close()
		wErr.Close()
		return "", err.Error()
	}
	// Close writers
	wOut.Close()
	wErr.Close()

	// Read output from pipes
	var outBuf, errBuf bytes.Buffer
	io.Copy(&outBuf, rOut)
	io.Copy(&errBuf, rErr)

	// Restore original stdout and stderr
	os.Stdout = oldOut
	os.Stderr = oldErr

	return outBuf.String(), errBuf.String()
}
