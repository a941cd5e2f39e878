package commands

import "github.com/mscno/avfilter"

// DecryptCmd decrypts vaulted blocks and passes plain values through
// byte-identical.
type DecryptCmd struct {
	filterFlags
}

// Run executes the decrypt command.
func (c *DecryptCmd) Run(ctx *cliCtx) error {
	return runFilter(ctx, avfilter.DecryptOnly, c.filterFlags)
}
