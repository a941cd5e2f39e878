package avfilter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mscno/avfilter/pkg/envelope"
)

func TestRenderPlainValue(t *testing.T) {
	tests := []struct {
		name      string
		keyPrefix string
		indent    int
		text      string
		want      string
	}{
		{
			name:      "single line",
			keyPrefix: "key: ",
			text:      "value",
			want:      "key: value\n",
		},
		{
			name:      "single line preserves indent via prefix",
			keyPrefix: "  key: ",
			indent:    2,
			text:      "value",
			want:      "  key: value\n",
		},
		{
			name:      "multi-line without trailing newline",
			keyPrefix: "key: ",
			text:      "one\ntwo",
			want:      "key: |-\n  one\n  two\n",
		},
		{
			name:      "multi-line with one trailing newline",
			keyPrefix: "key: ",
			text:      "one\ntwo\n",
			want:      "key: |\n  one\n  two\n",
		},
		{
			name:      "multi-line with extra trailing newline",
			keyPrefix: "key: ",
			text:      "one\n\n",
			want:      "key: |+\n  one\n  \n",
		},
		{
			name:      "indented multi-line",
			keyPrefix: "    key: ",
			indent:    4,
			text:      "one\ntwo\n",
			want:      "    key: |\n      one\n      two\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderPlainValue(&buf, tc.keyPrefix, tc.indent, tc.text, "\n")
			if buf.String() != tc.want {
				t.Errorf("renderPlainValue() = %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

func TestRenderPlainValueCRLF(t *testing.T) {
	var buf bytes.Buffer
	renderPlainValue(&buf, "key: ", 0, "one\ntwo\n", "\r\n")
	want := "key: |\r\n  one\r\n  two\r\n"
	if buf.String() != want {
		t.Errorf("renderPlainValue() = %q, want %q", buf.String(), want)
	}
}

func TestRenderVaultBlock(t *testing.T) {
	env := &envelope.Envelope{
		FormatVersion: envelope.VersionV11,
		CipherID:      envelope.CipherAES256,
		Salt:          bytes.Repeat([]byte{0x01}, envelope.SaltLength),
		HMAC:          bytes.Repeat([]byte{0x02}, envelope.HMACLength),
		Ciphertext:    []byte{0x03, 0x04},
	}

	envLines, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var buf bytes.Buffer
	renderVaultBlock(&buf, "  secret: ", 2, envLines, "\n")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "  secret: !vault |" {
		t.Errorf("opener = %q", lines[0])
	}
	if len(lines) < 3 {
		t.Fatalf("expected header and body lines, got %q", lines)
	}
	if lines[1] != "    $ANSIBLE_VAULT;1.1;AES256" {
		t.Errorf("header line = %q", lines[1])
	}
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "     ") {
			t.Errorf("body line %q not at exactly key indent + 2", line)
		}
	}
}
