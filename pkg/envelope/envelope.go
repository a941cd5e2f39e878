// Package envelope encodes and decodes the Ansible Vault textual envelope:
// a header line naming the format version and cipher suite, followed by the
// hex-encoded payload wrapped at a fixed column width. The codec is purely
// textual and knows nothing about cryptography.
package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// Header is the sentinel that opens every vault envelope.
	Header = "$ANSIBLE_VAULT"

	// VersionV11 is the envelope version without an identity label.
	VersionV11 = "1.1"
	// VersionV12 is the envelope version that carries an identity label.
	VersionV12 = "1.2"

	// CipherAES256 is the single cipher suite this codec supports.
	CipherAES256 = "AES256"

	// SaltLength is the byte length of the salt in the payload.
	SaltLength = 32
	// HMACLength is the byte length of the HMAC in the payload.
	HMACLength = 32

	// hexLineWidth is the wrap column for the hex body. Ansible wraps at 80
	// hex characters per line, so re-encoding is byte-stable.
	hexLineWidth = 80
)

// ErrMalformedEnvelope indicates text that does not parse as a vault
// envelope: bad header grammar, non-hex or odd-length body, or a payload
// too short to hold salt and HMAC.
var ErrMalformedEnvelope = errors.New("malformed vault envelope")

// ErrUnsupportedFormat indicates a well-formed header naming a version or
// cipher suite this codec does not support.
var ErrUnsupportedFormat = errors.New("unsupported vault format")

// ErrInvalidLabel indicates an identity label that cannot be written into a
// header without corrupting it.
var ErrInvalidLabel = errors.New("invalid identity label")

// Envelope is the decoded representation of a vaulted value.
type Envelope struct {
	FormatVersion string
	IdentityLabel string
	CipherID      string
	Salt          []byte
	HMAC          []byte
	Ciphertext    []byte
}

// Decode parses envelope lines: the header line followed by one or more hex
// body lines. Leading and trailing whitespace on each line is ignored.
func Decode(lines []string) (*Envelope, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: expected header and body, got %d line(s)", ErrMalformedEnvelope, len(lines))
	}

	header := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(header, Header+";") {
		return nil, fmt.Errorf("%w: bad header %q", ErrMalformedEnvelope, header)
	}

	parts := strings.Split(header, ";")
	env := &Envelope{}
	switch len(parts) {
	case 3:
		env.FormatVersion = parts[1]
		env.CipherID = parts[2]
	case 4:
		env.FormatVersion = parts[1]
		env.CipherID = parts[2]
		env.IdentityLabel = parts[3]
	default:
		return nil, fmt.Errorf("%w: bad header %q", ErrMalformedEnvelope, header)
	}

	switch env.FormatVersion {
	case VersionV11:
		if env.IdentityLabel != "" {
			return nil, fmt.Errorf("%w: version 1.1 does not carry an identity label", ErrMalformedEnvelope)
		}
	case VersionV12:
		if env.IdentityLabel == "" {
			return nil, fmt.Errorf("%w: version 1.2 requires an identity label", ErrMalformedEnvelope)
		}
	default:
		return nil, fmt.Errorf("%w: version %q", ErrUnsupportedFormat, env.FormatVersion)
	}

	if env.CipherID != CipherAES256 {
		return nil, fmt.Errorf("%w: cipher %q", ErrUnsupportedFormat, env.CipherID)
	}

	var body strings.Builder
	for _, line := range lines[1:] {
		body.WriteString(strings.TrimSpace(line))
	}

	payload, err := hex.DecodeString(body.String())
	if err != nil {
		return nil, fmt.Errorf("%w: body is not valid hex: %v", ErrMalformedEnvelope, err)
	}
	if len(payload) < SaltLength+HMACLength {
		return nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrMalformedEnvelope, len(payload))
	}

	env.Salt = payload[:SaltLength]
	env.HMAC = payload[SaltLength : SaltLength+HMACLength]
	env.Ciphertext = payload[SaltLength+HMACLength:]
	return env, nil
}

// Encode renders the envelope as its textual lines: the header followed by
// the hex body wrapped at the fixed column width. No trailing blank line is
// produced. Identity labels containing the header field separator or line
// breaks are rejected, since Decode could never read the result back.
func (e *Envelope) Encode() ([]string, error) {
	if strings.ContainsAny(e.IdentityLabel, ";\r\n") {
		return nil, fmt.Errorf("%w: %q must not contain ';' or line breaks", ErrInvalidLabel, e.IdentityLabel)
	}

	header := fmt.Sprintf("%s;%s;%s", Header, e.FormatVersion, e.CipherID)
	if e.IdentityLabel != "" {
		header = fmt.Sprintf("%s;%s", header, e.IdentityLabel)
	}

	payload := make([]byte, 0, len(e.Salt)+len(e.HMAC)+len(e.Ciphertext))
	payload = append(payload, e.Salt...)
	payload = append(payload, e.HMAC...)
	payload = append(payload, e.Ciphertext...)
	body := hex.EncodeToString(payload)

	lines := []string{header}
	for i := 0; i < len(body); i += hexLineWidth {
		end := i + hexLineWidth
		if end > len(body) {
			end = len(body)
		}
		lines = append(lines, body[i:end])
	}
	return lines, nil
}
