// Package scanner classifies a line-oriented YAML fragment into groups:
// single-line "key: value" pairs, multi-line vaulted blocks introduced by
// "key: !vault |", literal block scalars, and passthrough lines that are
// echoed untouched. It is a small explicit state machine (idle / in-block),
// stateful mid-stream because a block opener changes how following lines
// are read until the block closes.
package scanner

import (
	"bytes"
	"regexp"
	"strings"
)

// Kind classifies a Group.
type Kind int

const (
	// Passthrough lines (blank, comments, structure, anything unrecognized)
	// are re-emitted unchanged.
	Passthrough Kind = iota
	// Plain is a key with a plaintext scalar value, single-line or a
	// literal block scalar.
	Plain
	// Vaulted is a key whose value is a "!vault |" block.
	Vaulted
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Vaulted:
		return "vaulted"
	default:
		return "passthrough"
	}
}

// Group is one classified unit of input: a key/value occurrence or a single
// passthrough line.
type Group struct {
	Kind Kind

	// KeyPrefix is the exact leading text up to and including the colon and
	// the whitespace that precedes the value. Empty for passthrough groups.
	KeyPrefix string

	// Indent is the column at which the key begins.
	Indent int

	// Lines holds the raw input lines of the group, terminators stripped.
	Lines []string

	// Terminators holds each line's original terminator ("\n", "\r\n", or
	// "" for a final unterminated line), parallel to Lines, so untouched
	// groups can be re-emitted byte-identical.
	Terminators []string

	// Scalar is the plaintext value of a Plain group: the literal scalar
	// text for a single-line value, or the decoded text of a literal block.
	Scalar string

	// Body holds the envelope lines of a Vaulted group, indentation stripped.
	Body []string

	// block carries the literal-block shape so a non-toggled group can be
	// re-emitted verbatim and a toggled one knows its chomping.
	block blockStyle
}

// blockStyle identifies the opener of a multi-line group.
type blockStyle int

const (
	blockNone blockStyle = iota
	blockVault
	blockLiteral      // |
	blockLiteralStrip // |-
	blockLiteralKeep  // |+
	blockFolded       // >, >- and >+ are grouped but never transformed
)

// rawLine is one input line split from its terminator.
type rawLine struct {
	text string
	term string
}

// keyLinePattern matches "<indent><key>:<space><value>" with a non-empty
// value. Keys may not start with whitespace, '#' or ':' and may not contain
// a colon.
var keyLinePattern = regexp.MustCompile(`^([ \t]*)([^ \t:#][^:]*?):([ \t]+)(.+)$`)

// Scan walks the input and returns its classified groups in order. It never
// rejects input: lines that fit no grammar come back as passthrough groups.
func Scan(data []byte) []Group {
	var groups []Group

	var open *Group       // block group under construction, nil when idle
	var pending []rawLine // blank lines seen inside an open block

	for _, line := range splitLines(data) {
		if open != nil {
			switch {
			case indentOf(line.text) > open.Indent:
				// A deeper line pulls any buffered blank lines into the
				// block as continuations.
				for _, p := range pending {
					appendLine(open, p)
				}
				pending = nil
				appendLine(open, line)
				continue
			case strings.TrimSpace(line.text) == "":
				// A blank line only terminates the block if no deeper line
				// follows it.
				pending = append(pending, line)
				continue
			default:
				groups = append(groups, closeBlock(open))
				open = nil
				for _, p := range pending {
					groups = append(groups, passthroughGroup(p))
				}
				pending = nil
			}
		}

		m := keyLinePattern.FindStringSubmatch(line.text)
		if m == nil {
			groups = append(groups, passthroughGroup(line))
			continue
		}

		indent, key, sep, value := m[1], m[2], m[3], m[4]
		g := Group{
			KeyPrefix:   indent + key + ":" + sep,
			Indent:      len(indent),
			Lines:       []string{line.text},
			Terminators: []string{line.term},
		}

		switch strings.TrimRight(value, " \t") {
		case "!vault |":
			g.Kind = Vaulted
			g.block = blockVault
			open = &g
		case "|":
			g.Kind = Plain
			g.block = blockLiteral
			open = &g
		case "|-":
			g.Kind = Plain
			g.block = blockLiteralStrip
			open = &g
		case "|+":
			g.Kind = Plain
			g.block = blockLiteralKeep
			open = &g
		case ">", ">-", ">+":
			// Folded blocks are grouped so their body is not misread as
			// fresh key lines, but they are never toggled.
			g.Kind = Passthrough
			g.block = blockFolded
			open = &g
		default:
			g.Kind = Plain
			g.Scalar = value
			groups = append(groups, g)
		}
	}

	if open != nil {
		groups = append(groups, closeBlock(open))
	}
	for _, p := range pending {
		groups = append(groups, passthroughGroup(p))
	}

	return groups
}

// splitLines splits the input into lines, keeping each line's original
// terminator so untouched lines can be re-emitted byte-identical. A final
// line without a terminator is kept with an empty one.
func splitLines(data []byte) []rawLine {
	var lines []rawLine
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, rawLine{text: string(data)})
			break
		}
		text, term := string(data[:i]), "\n"
		if strings.HasSuffix(text, "\r") {
			text, term = text[:len(text)-1], "\r\n"
		}
		lines = append(lines, rawLine{text: text, term: term})
		data = data[i+1:]
	}
	return lines
}

func appendLine(g *Group, l rawLine) {
	g.Lines = append(g.Lines, l.text)
	g.Terminators = append(g.Terminators, l.term)
}

func passthroughGroup(l rawLine) Group {
	return Group{Kind: Passthrough, Lines: []string{l.text}, Terminators: []string{l.term}}
}

// closeBlock finalizes a block group once its terminator (or end of input)
// was seen.
func closeBlock(g *Group) Group {
	body := g.Lines[1:]
	switch g.block {
	case blockVault:
		g.Body = make([]string, 0, len(body))
		for _, line := range body {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				g.Body = append(g.Body, trimmed)
			}
		}
	case blockLiteral, blockLiteralStrip, blockLiteralKeep:
		g.Scalar = literalText(body, g.block)
	}
	return *g
}

// literalText reconstructs the string value of a literal block scalar from
// its continuation lines, applying the opener's chomping indicator. The
// block indent is taken from the first line with content; blank lines
// contribute bare newlines whatever their width.
func literalText(body []string, style blockStyle) string {
	if len(body) == 0 {
		return ""
	}

	blockIndent := 0
	for _, line := range body {
		if strings.TrimSpace(line) != "" {
			blockIndent = indentOf(line)
			break
		}
	}

	var b strings.Builder
	for _, line := range body {
		if strings.TrimSpace(line) != "" && len(line) >= blockIndent {
			b.WriteString(line[blockIndent:])
		}
		b.WriteByte('\n')
	}

	text := b.String()
	switch style {
	case blockLiteralStrip:
		return strings.TrimRight(text, "\n")
	case blockLiteralKeep:
		return text
	default:
		// Clip: exactly one trailing newline.
		return strings.TrimRight(text, "\n") + "\n"
	}
}

// indentOf counts the leading space columns of a line.
func indentOf(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' {
			return i
		}
	}
	return len(line)
}
