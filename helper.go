package avfilter

import (
	"bytes"
	"strings"
)

// renderVaultBlock writes "<key_prefix>!vault |" followed by the envelope
// lines, each indented two columns past the key and terminated with eol.
func renderVaultBlock(buf *bytes.Buffer, keyPrefix string, indent int, lines []string, eol string) {
	buf.WriteString(keyPrefix)
	buf.WriteString("!vault |")
	buf.WriteString(eol)

	pad := strings.Repeat(" ", indent+2)
	for _, line := range lines {
		buf.WriteString(pad)
		buf.WriteString(line)
		buf.WriteString(eol)
	}
}

// renderPlainValue writes a decrypted value back under its key. Single-line
// text goes inline; text containing newlines becomes a literal block scalar
// whose chomping indicator preserves the trailing-newline shape ("|" for
// one trailing newline, "|+" for more, "|-" for none). Output lines are
// terminated with eol.
func renderPlainValue(buf *bytes.Buffer, keyPrefix string, indent int, text string, eol string) {
	if !strings.Contains(text, "\n") {
		buf.WriteString(keyPrefix)
		buf.WriteString(text)
		buf.WriteString(eol)
		return
	}

	opener := "|-"
	if strings.HasSuffix(text, "\n\n") {
		opener = "|+"
	} else if strings.HasSuffix(text, "\n") {
		opener = "|"
	}

	buf.WriteString(keyPrefix)
	buf.WriteString(opener)
	buf.WriteString(eol)

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	pad := strings.Repeat(" ", indent+2)
	for _, line := range lines {
		buf.WriteString(pad)
		buf.WriteString(line)
		buf.WriteString(eol)
	}
}
