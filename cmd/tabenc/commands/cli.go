package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/tabadm/tabenc/pkg/prompt"
)

type cliCtx struct {
	context.Context
	Logger   *slog.Logger
	Prompter prompt.Prompter
}

type cli struct {
	Set    SetCmd    `cmd:"" help:"Set the extract encryption mode on every site of the server."`
	Status StatusCmd `cmd:"" help:"Show the extract encryption mode of every site without changing anything."`

	Debug   bool             `help:"Enable debug logging." short:"d"`
	NoInput bool             `help:"Never prompt; fail if a required value is missing." env:"TABENC_NO_INPUT"`
	Version kong.VersionFlag `help:"Show version"`
}

// ConnectionFlags is shared by every command that talks to a server.
// Values left empty are requested interactively unless --no-input is set.
type ConnectionFlags struct {
	Server     string        `help:"Tableau Server URL, including scheme." env:"TABLEAU_SERVER"`
	Username   string        `help:"Account with server administrator rights." env:"TABLEAU_USERNAME"`
	Password   string        `help:"Password for the account." env:"TABLEAU_PASSWORD"`
	Site       string        `help:"Content URL of the site to sign in to; empty or 'Default' selects the default site." env:"TABLEAU_SITE"`
	APIVersion string        `help:"REST API version to issue requests against." default:"3.4"`
	PageSize   int           `help:"Page size for paginated listings." default:"100"`
	Timeout    time.Duration `help:"Timeout for each API call." default:"30s"`
}

func Execute(version string) {
	// Defaults may be kept in a .env next to the tool; flags and real
	// environment variables win over it.
	_ = godotenv.Load()

	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("tabenc"),
		kong.Description("tabenc manages extract encryption at rest across all sites of a Tableau Server."),
		kong.Vars{"version": version},
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var prompter prompt.Prompter = prompt.NewTerminal()
	if cli.NoInput {
		prompter = prompt.NonInteractive{}
	}

	err := ctx.Run(&cliCtx{Context: context.Background(), Logger: logger, Prompter: prompter})
	ctx.FatalIfErrorf(err)
}
