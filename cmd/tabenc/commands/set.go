package commands

import (
	"fmt"

	"github.com/tabadm/tabenc/pkg/config"
	"github.com/tabadm/tabenc/pkg/updater"
)

type SetCmd struct {
	Mode string `arg:"" help:"Target encryption mode: disabled, enabled or enforced."`

	ConnectionFlags `embed:""`
}

func (c *SetCmd) Run(ctx *cliCtx) error {
	// The mode literal is checked before credentials are resolved, so a
	// typo fails before any prompting or network call.
	mode, err := config.ResolveMode(c.Mode)
	if err != nil {
		return err
	}

	client, creds, err := setupClient(ctx, &c.ConnectionFlags)
	if err != nil {
		return err
	}

	u := updater.New(client, mode, ctx.Logger)
	summary, err := u.Run(ctx, updater.Credentials{
		Username: creds.Username,
		Password: creds.Password,
		Site:     creds.Site,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Set encryption mode to %s on %s\n\n", mode, creds.Server)
	for _, r := range summary.Results {
		if r.Failed() {
			fmt.Printf("  %-25s FAILED: %v\n", r.Site.Name, r.Err)
		} else if r.PreviousMode == mode {
			fmt.Printf("  %-25s ok (already %s)\n", r.Site.Name, mode)
		} else {
			fmt.Printf("  %-25s ok (%s -> %s)\n", r.Site.Name, r.PreviousMode, mode)
		}
	}
	fmt.Printf("\n%d updated, %d failed\n", summary.Succeeded(), summary.Failed())

	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d sites failed", n, len(summary.Results))
	}
	return nil
}
