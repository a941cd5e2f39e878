// Package avfilter toggles individual scalar values inside line-oriented
// YAML between plaintext and the Ansible Vault encrypted representation.
// Plain "key: value" lines get their value encrypted into a "!vault |"
// block; vaulted blocks get decrypted back to "key: value". Everything
// else passes through untouched.
package avfilter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mscno/avfilter/pkg/envelope"
	"github.com/mscno/avfilter/pkg/scanner"
	"github.com/mscno/avfilter/pkg/vaultcrypto"
)

// Mode selects the direction of the toggle.
type Mode int

const (
	// AutoToggle encrypts plain values and decrypts vaulted ones.
	AutoToggle Mode = iota
	// EncryptOnly encrypts plain values and leaves vaulted blocks untouched.
	EncryptOnly
	// DecryptOnly decrypts vaulted blocks and leaves plain values untouched.
	DecryptOnly
)

func (m Mode) String() string {
	switch m {
	case EncryptOnly:
		return "encrypt"
	case DecryptOnly:
		return "decrypt"
	default:
		return "auto"
	}
}

// ParseMode parses a mode selector string as accepted by the CLI.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto", "toggle", "":
		return AutoToggle, nil
	case "encrypt":
		return EncryptOnly, nil
	case "decrypt":
		return DecryptOnly, nil
	default:
		return AutoToggle, fmt.Errorf("unknown mode %q (want auto, encrypt or decrypt)", s)
	}
}

// Options configures a filter run. The secret must already be resolved;
// the core never consults the environment or the filesystem for it.
type Options struct {
	// Secret is the vault passphrase. Required as soon as any value is
	// actually transformed.
	Secret []byte
	// IdentityLabel, when set, is recorded in newly written envelopes
	// (format version 1.2).
	IdentityLabel string
	// Mode selects the toggle direction. Zero value is AutoToggle.
	Mode Mode
	// Cipher overrides the cipher suite. Defaults to vaultcrypto.AES256.
	Cipher vaultcrypto.Cipher
	// Logger receives debug output. Defaults to a discard handler.
	Logger *slog.Logger
}

func (o Options) cipher() vaultcrypto.Cipher {
	if o.Cipher != nil {
		return o.Cipher
	}
	return vaultcrypto.AES256{}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Filter reads the whole input stream, toggles every recognized value, and
// writes the result to out. Nothing is written unless the entire input
// transformed cleanly, so a failed run never emits a partially toggled
// document.
func Filter(in io.Reader, out io.Writer, opts Options) (int, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return -1, err
	}

	toggled, err := toggleData(data, opts)
	if err != nil {
		return -1, err
	}
	return out.Write(toggled)
}

// FilterFileInPlace toggles every recognized value of the file at path and
// writes the result back over it, preserving the file mode.
func FilterFileInPlace(path string, opts Options) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return -1, err
	}

	toggled, err := toggleData(data, opts)
	if err != nil {
		return -1, err
	}

	if err := os.WriteFile(path, toggled, info.Mode()); err != nil {
		return -1, err
	}
	return len(toggled), nil
}

// toggleData classifies the input lines and transforms each group per the
// configured mode. Untouched groups are re-emitted byte-identical, original
// line terminators included; toggled groups keep their key line's terminator.
func toggleData(data []byte, opts Options) ([]byte, error) {
	logger := opts.logger()

	groups := scanner.Scan(data)
	logger.Debug("scanned input", "groups", len(groups), "mode", opts.Mode.String())

	var buf bytes.Buffer
	for _, g := range groups {
		switch {
		case g.Kind == scanner.Plain && opts.Mode != DecryptOnly:
			if err := encryptGroup(&buf, g, opts); err != nil {
				return nil, err
			}
		case g.Kind == scanner.Vaulted && opts.Mode != EncryptOnly:
			if err := decryptGroup(&buf, g, opts); err != nil {
				return nil, err
			}
		default:
			echoGroup(&buf, g)
		}
	}
	return buf.Bytes(), nil
}

// encryptGroup seals the group's plaintext scalar and renders it as a
// "!vault |" block at the original key position.
func encryptGroup(buf *bytes.Buffer, g scanner.Group, opts Options) error {
	opts.logger().Debug("encrypting value", "key_prefix", g.KeyPrefix, "indent", g.Indent)

	salt, mac, ciphertext, err := opts.cipher().Encrypt([]byte(g.Scalar), opts.Secret)
	if err != nil {
		return fmt.Errorf("encrypting value at %q: %w", g.KeyPrefix, err)
	}

	env := &envelope.Envelope{
		FormatVersion: envelope.VersionV11,
		CipherID:      envelope.CipherAES256,
		Salt:          salt,
		HMAC:          mac,
		Ciphertext:    ciphertext,
	}
	if opts.IdentityLabel != "" {
		env.FormatVersion = envelope.VersionV12
		env.IdentityLabel = opts.IdentityLabel
	}

	lines, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encoding envelope at %q: %w", g.KeyPrefix, err)
	}

	renderVaultBlock(buf, g.KeyPrefix, g.Indent, lines, groupEOL(g))
	return nil
}

// decryptGroup decodes and opens the group's envelope and renders the
// plaintext back under the original key.
func decryptGroup(buf *bytes.Buffer, g scanner.Group, opts Options) error {
	opts.logger().Debug("decrypting value", "key_prefix", g.KeyPrefix, "body_lines", len(g.Body))

	env, err := envelope.Decode(g.Body)
	if err != nil {
		return fmt.Errorf("decoding envelope at %q: %w", g.KeyPrefix, err)
	}

	plaintext, err := opts.cipher().Decrypt(env.Salt, env.HMAC, env.Ciphertext, opts.Secret)
	if err != nil {
		return fmt.Errorf("decrypting value at %q: %w", g.KeyPrefix, err)
	}

	renderPlainValue(buf, g.KeyPrefix, g.Indent, string(plaintext), groupEOL(g))
	return nil
}

// echoGroup re-emits a group's raw lines byte-identical, each with the
// terminator it carried on input.
func echoGroup(buf *bytes.Buffer, g scanner.Group) {
	for i, line := range g.Lines {
		buf.WriteString(line)
		buf.WriteString(g.Terminators[i])
	}
}

// groupEOL picks the terminator for a toggled group's output lines: the one
// its key line carried, or "\n" when the key line ended the input without
// one (a multi-line block cannot be written without terminators).
func groupEOL(g scanner.Group) string {
	if eol := g.Terminators[0]; eol != "" {
		return eol
	}
	return "\n"
}
