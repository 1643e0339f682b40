package updater_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabadm/tabenc/pkg/tableau"
	"github.com/tabadm/tabenc/pkg/tableau/tableautest"
	"github.com/tabadm/tabenc/pkg/updater"
)

var creds = updater.Credentials{Username: "admin", Password: "hunter2"}

func newServer(sites ...tableau.Site) *tableautest.Server {
	srv := tableautest.NewServer("admin", "hunter2")
	for _, site := range sites {
		srv.AddSite(site)
	}
	return srv
}

func newUpdater(t *testing.T, srv *tableautest.Server, mode tableau.EncryptionMode) *updater.Updater {
	t.Helper()
	client, err := tableau.NewClient(tableau.ClientConfig{
		ServerURL: srv.URL(),
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return updater.New(client, mode, nil)
}

func TestRunUpdatesEverySite(t *testing.T) {
	srv := newServer(
		tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled},
		tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionEnabled},
		tableau.Site{ID: "c", Name: "Sales", ContentURL: "sales", EncryptionMode: tableau.EncryptionDisabled},
	)
	defer srv.Close()

	summary, err := newUpdater(t, srv, tableau.EncryptionEnforced).Run(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 3, summary.Succeeded())
	assert.Equal(t, 0, summary.Failed())

	// Exactly one update per listed site.
	assert.Equal(t, 3, srv.CallCount("update"))
	for _, id := range []string{"a", "b", "c"} {
		site, ok := srv.Site(id)
		require.True(t, ok)
		assert.Equal(t, tableau.EncryptionEnforced, site.EncryptionMode, "site %s", id)
	}
	assert.Equal(t, 1, srv.CallCount("signout"))
}

func TestRunContinuesAfterSiteFailure(t *testing.T) {
	srv := newServer(
		tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled},
		tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionDisabled},
		tableau.Site{ID: "c", Name: "Sales", ContentURL: "sales", EncryptionMode: tableau.EncryptionDisabled},
	)
	defer srv.Close()
	srv.FailUpdate["b"] = true

	summary, err := newUpdater(t, srv, tableau.EncryptionEnabled).Run(context.Background(), creds)
	require.NoError(t, err, "per-site failures do not abort the run")
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 1, summary.Failed())

	assert.False(t, summary.Results[0].Failed())
	assert.True(t, summary.Results[1].Failed())
	assert.False(t, summary.Results[2].Failed(), "site after the failure is still processed")

	for _, id := range []string{"a", "c"} {
		site, _ := srv.Site(id)
		assert.Equal(t, tableau.EncryptionEnabled, site.EncryptionMode, "site %s", id)
	}
	site, _ := srv.Site("b")
	assert.Equal(t, tableau.EncryptionDisabled, site.EncryptionMode)

	assert.Equal(t, 1, srv.CallCount("signout"), "sign-out still attempted after failures")
}

func TestRunSignInFailure(t *testing.T) {
	srv := newServer(tableau.Site{ID: "a", ContentURL: ""})
	defer srv.Close()
	srv.FailSignIn = true

	_, err := newUpdater(t, srv, tableau.EncryptionEnforced).Run(context.Background(), creds)
	require.Error(t, err)

	var authErr *tableau.AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, srv.CallCount("sites"), "no listing after failed sign-in")
	assert.Equal(t, 0, srv.CallCount("update"))
	assert.Equal(t, 0, srv.CallCount("signout"), "no session exists to sign out of")
}

func TestRunListingFailureAbortsAndSignsOut(t *testing.T) {
	srv := newServer(tableau.Site{ID: "a", ContentURL: ""})
	defer srv.Close()
	srv.FailSitesPage = 1

	_, err := newUpdater(t, srv, tableau.EncryptionEnforced).Run(context.Background(), creds)
	require.Error(t, err)
	assert.Equal(t, 0, srv.CallCount("update"), "an incomplete site list is never processed")
	assert.Equal(t, 1, srv.CallCount("signout"))
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newServer(
		tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionEnforced},
		tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionEnforced},
	)
	defer srv.Close()

	u := newUpdater(t, srv, tableau.EncryptionEnforced)
	for run := 0; run < 2; run++ {
		summary, err := u.Run(context.Background(), creds)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Succeeded())
		assert.Equal(t, 0, summary.Failed())
	}
	assert.Equal(t, 4, srv.CallCount("update"), "already-set sites still get their one update call")
}

func TestRunSignOutFailureDoesNotChangeOutcome(t *testing.T) {
	srv := newServer(tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled})
	defer srv.Close()
	srv.FailSignOut = true

	summary, err := newUpdater(t, srv, tableau.EncryptionEnabled).Run(context.Background(), creds)
	require.NoError(t, err, "sign-out failure is logged, not escalated")
	assert.Equal(t, 1, summary.Succeeded())
	assert.Equal(t, 1, srv.CallCount("signout"), "sign-out attempted exactly once")
}
