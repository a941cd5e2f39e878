// Package main provides the avfilter CLI for toggling YAML values between
// plaintext and ansible-vault blocks.
package main

import "github.com/mscno/avfilter/cmd/avfilter/commands"

func main() {
	commands.Execute(Version)
}
