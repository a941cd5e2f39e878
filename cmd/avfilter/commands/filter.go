package commands

import "github.com/mscno/avfilter"

// FilterCmd toggles each value in both directions: plain values are
// encrypted, vaulted values are decrypted.
type FilterCmd struct {
	filterFlags
}

// Run executes the filter command.
func (c *FilterCmd) Run(ctx *cliCtx) error {
	return runFilter(ctx, avfilter.AutoToggle, c.filterFlags)
}
