package commands

import "github.com/mscno/avfilter"

// EncryptCmd encrypts plain values and passes already-vaulted blocks
// through byte-identical.
type EncryptCmd struct {
	filterFlags
}

// Run executes the encrypt command.
func (c *EncryptCmd) Run(ctx *cliCtx) error {
	return runFilter(ctx, avfilter.EncryptOnly, c.filterFlags)
}
