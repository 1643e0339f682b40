package commands

import (
	"github.com/tabadm/tabenc/pkg/config"
	"github.com/tabadm/tabenc/pkg/tableau"
)

// setupClient handles the common logic of resolving credentials and
// initializing the API client for a command's connection flags.
func setupClient(ctx *cliCtx, flags *ConnectionFlags) (*tableau.Client, config.Credentials, error) {
	creds, err := config.ResolveCredentials(config.RawCredentials{
		Server:   flags.Server,
		Username: flags.Username,
		Password: flags.Password,
		Site:     flags.Site,
	}, ctx.Prompter)
	if err != nil {
		return nil, config.Credentials{}, err
	}

	ctx.Logger.Debug("initializing client", "server", creds.Server, "apiVersion", flags.APIVersion)
	client, err := tableau.NewClient(tableau.ClientConfig{
		ServerURL: creds.Server,
		Version:   flags.APIVersion,
		PageSize:  flags.PageSize,
		Timeout:   flags.Timeout,
		Logger:    ctx.Logger,
	})
	if err != nil {
		return nil, config.Credentials{}, err
	}
	return client, creds, nil
}
