// Package updater orchestrates the sign-in, list, per-site update, sign-out
// sequence for setting the extract encryption mode on every site of a
// server.
package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabadm/tabenc/pkg/tableau"
)

// Credentials identifies the account the run executes as. Site is the
// content URL of the site to sign in to; empty selects the default site.
type Credentials struct {
	Username string
	Password string
	Site     string
}

// SiteResult records the outcome for one site.
type SiteResult struct {
	Site         tableau.Site
	PreviousMode tableau.EncryptionMode
	Err          error
}

func (r SiteResult) Failed() bool {
	return r.Err != nil
}

// Summary is the outcome of one run: one result per listed site, in listing
// order.
type Summary struct {
	Mode    tableau.EncryptionMode
	Results []SiteResult
}

// Failed counts sites whose update did not succeed.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Succeeded counts sites whose update went through.
func (s Summary) Succeeded() int {
	return len(s.Results) - s.Failed()
}

// Updater applies one target encryption mode to every site on a server.
// Execution is strictly sequential: no retries, no concurrency.
type Updater struct {
	client *tableau.Client
	mode   tableau.EncryptionMode
	logger *slog.Logger
}

func New(client *tableau.Client, mode tableau.EncryptionMode, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{client: client, mode: mode, logger: logger}
}

// Run signs in, lists every site, issues exactly one update per site and
// signs out. A sign-in or listing failure aborts the run; a per-site update
// failure is recorded in the summary and processing continues with the next
// site. Sign-out is attempted exactly once whenever a session was
// established, and its own failure never changes the outcome.
func (u *Updater) Run(ctx context.Context, creds Credentials) (Summary, error) {
	session, err := u.client.SignIn(ctx, creds.Username, creds.Password, creds.Site)
	if err != nil {
		return Summary{}, fmt.Errorf("sign in: %w", err)
	}

	summary := Summary{Mode: u.mode}
	sites, err := u.client.QuerySites(ctx, session)
	if err != nil {
		u.signOut(ctx, session)
		return Summary{}, fmt.Errorf("list sites: %w", err)
	}
	u.logger.Info("setting encryption mode on all sites", "mode", u.mode, "sites", len(sites))

	for _, site := range sites {
		result := SiteResult{Site: site, PreviousMode: site.EncryptionMode}
		// Site updates must be issued from a session on that site.
		if session.SiteID != site.ID {
			next, err := u.client.SwitchSite(ctx, session, site.ContentURL)
			if err != nil {
				result.Err = fmt.Errorf("switch to site: %w", err)
				u.logger.Warn("site update failed", "site", site.Name, "error", result.Err)
				summary.Results = append(summary.Results, result)
				continue
			}
			session = next
		}
		updated, err := u.client.UpdateSiteEncryption(ctx, session, site.ID, u.mode)
		if err != nil {
			result.Err = err
			u.logger.Warn("site update failed", "site", site.Name, "error", err)
		} else {
			result.Site.EncryptionMode = updated.EncryptionMode
			u.logger.Info("site updated", "site", site.Name, "from", result.PreviousMode, "to", updated.EncryptionMode)
		}
		summary.Results = append(summary.Results, result)
	}

	u.signOut(ctx, session)
	return summary, nil
}

// signOut is best-effort cleanup; a failure is logged, never escalated.
func (u *Updater) signOut(ctx context.Context, session tableau.Session) {
	if err := u.client.SignOut(ctx, session); err != nil {
		u.logger.Warn("sign out failed", "error", err)
	}
}
