package commands

import (
	"fmt"
)

type StatusCmd struct {
	ConnectionFlags `embed:""`
}

func (c *StatusCmd) Run(ctx *cliCtx) error {
	client, creds, err := setupClient(ctx, &c.ConnectionFlags)
	if err != nil {
		return err
	}

	session, err := client.SignIn(ctx, creds.Username, creds.Password, creds.Site)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	defer func() {
		if err := client.SignOut(ctx, session); err != nil {
			ctx.Logger.Warn("sign out failed", "error", err)
		}
	}()

	sites, err := client.QuerySites(ctx, session)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	fmt.Printf("Extract encryption on %s\n\n", creds.Server)
	for _, site := range sites {
		fmt.Printf("  %-25s %s\n", site.Name, site.EncryptionMode)
	}
	fmt.Printf("\n%d sites\n", len(sites))
	return nil
}
