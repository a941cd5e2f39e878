// Package identity resolves the vault secret for a named identity. The
// lookup order is: caller-supplied secret, environment variables, the
// dotenv-format keyring file, and finally the operating system keyring.
// Interactive prompting is provided separately for the CLI layer; the
// filter core itself never performs any of these lookups.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	keyringlib "github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// EnvPassword is the environment variable holding the default secret.
	// Per-identity secrets use EnvPassword + "_<LABEL>" (upper-cased).
	EnvPassword = "AVFILTER_PASSWORD"

	// EnvIdentity names the default vault identity, mirroring the variable
	// ansible-vault users already export.
	EnvIdentity = "ANSIBLE_VAULT_IDENTITY"

	// DefaultKeyringFilename is the dotenv-format file searched in the
	// configured key directory.
	DefaultKeyringFilename = ".avfilter-keyring"

	// osKeyringService is the service name used with the OS keyring.
	osKeyringService = "avfilter"

	// osKeyringDefaultUser is the OS keyring entry consulted when no
	// identity label is set.
	osKeyringDefaultUser = "default"
)

// ErrNotFound indicates that no secret could be resolved for the identity
// through any non-interactive source.
var ErrNotFound = errors.New("vault secret not found")

// Identity is a resolved vault identity: an optional label plus the secret
// bytes used for encryption and decryption.
type Identity struct {
	Label  string
	Secret []byte
}

// Keyring abstracts the OS keyring so tests can substitute an in-memory
// implementation.
type Keyring interface {
	Get(service, user string) (string, error)
}

// SystemKeyring reads from the operating system keyring.
type SystemKeyring struct{}

func (SystemKeyring) Get(service, user string) (string, error) {
	secret, err := keyringlib.Get(service, user)
	if err != nil {
		if errors.Is(err, keyringlib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading OS keyring: %w", err)
	}
	return secret, nil
}

// MemoryKeyring is an in-memory Keyring for tests.
type MemoryKeyring map[string]string

func (m MemoryKeyring) Get(service, user string) (string, error) {
	if secret, ok := m[service+"/"+user]; ok {
		return secret, nil
	}
	return "", ErrNotFound
}

// Resolver resolves secrets for identities.
type Resolver struct {
	// Keydir is the directory searched for the keyring file. Empty means
	// the current directory.
	Keydir string
	// Keyring is the OS keyring backend. Nil disables the OS keyring step.
	Keyring Keyring
	// Logger receives debug output about which source supplied the secret.
	Logger *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// DefaultLabel returns the identity label from the environment, or the
// empty string when none is configured.
func DefaultLabel() string {
	return os.Getenv(EnvIdentity)
}

// Resolve finds the secret for label. A non-empty userSupplied secret wins
// outright. Returns ErrNotFound when every source comes up empty, so the
// caller can decide whether to prompt.
func (r *Resolver) Resolve(label, userSupplied string) (Identity, error) {
	id := Identity{Label: label}

	if userSupplied != "" {
		r.logger().Debug("using caller-supplied secret", "label", label)
		id.Secret = []byte(userSupplied)
		return id, nil
	}

	envKey := EnvPassword
	if label != "" {
		envKey = fmt.Sprintf("%s_%s", EnvPassword, strings.ToUpper(label))
	}
	if secret, ok := os.LookupEnv(envKey); ok && secret != "" {
		r.logger().Debug("found secret in environment", "var", envKey)
		id.Secret = []byte(secret)
		return id, nil
	}

	secret, err := r.lookupKeyringFile(envKey)
	if err != nil {
		return id, err
	}
	if secret != "" {
		id.Secret = []byte(secret)
		return id, nil
	}

	if r.Keyring != nil {
		user := label
		if user == "" {
			user = osKeyringDefaultUser
		}
		secret, err := r.Keyring.Get(osKeyringService, user)
		if err == nil {
			r.logger().Debug("found secret in OS keyring", "user", user)
			id.Secret = []byte(secret)
			return id, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return id, err
		}
	}

	return id, fmt.Errorf("%w: identity %q (tried $%s, %s, OS keyring)",
		ErrNotFound, label, envKey, DefaultKeyringFilename)
}

// lookupKeyringFile reads the dotenv-format keyring file in Keydir and
// returns the value for key, or empty when the file or the entry does not
// exist.
func (r *Resolver) lookupKeyringFile(key string) (string, error) {
	if err := validateKeydir(r.Keydir); err != nil {
		return "", err
	}

	path := filepath.Join(r.Keydir, DefaultKeyringFilename)
	checkKeyringPermissions(r.logger(), path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading keyring file %q: %w", path, err)
	}

	entries, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing keyring file %q: %w", path, err)
	}

	if secret, ok := entries[key]; ok && secret != "" {
		r.logger().Debug("found secret in keyring file", "file", path, "key", key)
		return secret, nil
	}
	return "", nil
}

// Prompt reads the passphrase for label from the controlling terminal
// without echo. The data stream occupies stdin, so the prompt goes through
// /dev/tty; when no terminal is available, ErrNotFound is returned.
func Prompt(label string) ([]byte, error) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return promptFd(label, int(os.Stdin.Fd()))
		}
		return nil, fmt.Errorf("%w: no terminal available to prompt for identity %q", ErrNotFound, label)
	}
	defer tty.Close()
	return promptFd(label, int(tty.Fd()))
}

func promptFd(label string, fd int) ([]byte, error) {
	if label == "" {
		fmt.Fprint(os.Stderr, "Vault password: ")
	} else {
		fmt.Fprintf(os.Stderr, "Vault password (%s): ", label)
	}
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return secret, nil
}

// validateKeydir rejects key directories containing traversal sequences.
func validateKeydir(keydir string) error {
	if keydir == "" {
		return nil
	}
	if strings.Contains(keydir, "..") {
		return fmt.Errorf("invalid key directory containing traversal sequences: %s", keydir)
	}
	return nil
}

// checkKeyringPermissions warns if the keyring file is readable by group or
// other.
func checkKeyringPermissions(logger *slog.Logger, path string) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		logger.Warn("keyring file has insecure permissions",
			"path", path, "mode", fmt.Sprintf("%04o", mode), "recommended", "0600")
	}
}
