package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/tabadm/tabenc/pkg/prompt"
	"github.com/tabadm/tabenc/pkg/tableau"
	"github.com/tabadm/tabenc/pkg/tableau/tableautest"
)

func testCtx() *cliCtx {
	return &cliCtx{
		Context:  context.Background(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Prompter: prompt.NonInteractive{},
	}
}

func testFlags(srv *tableautest.Server) ConnectionFlags {
	return ConnectionFlags{
		Server:   srv.URL(),
		Username: "admin",
		Password: "hunter2",
		PageSize: 100,
		Timeout:  5 * time.Second,
	}
}

func TestSetCmd(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()
	srv.AddSite(tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled})
	srv.AddSite(tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionEnforced})

	cmd := &SetCmd{Mode: "enforced", ConnectionFlags: testFlags(srv)}
	out, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Equal(t, errString, "")
	assert.Contains(t, out, "Default")
	assert.Contains(t, out, "disabled -> enforced")
	assert.Contains(t, out, "already enforced")
	assert.Contains(t, out, "2 updated, 0 failed")

	site, _ := srv.Site("a")
	assert.Equal(t, site.EncryptionMode, tableau.EncryptionEnforced)
}

func TestSetCmdInvalidMode(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()
	srv.AddSite(tableau.Site{ID: "a", Name: "Default", ContentURL: ""})

	cmd := &SetCmd{Mode: "sideways", ConnectionFlags: testFlags(srv)}
	_, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Contains(t, errString, "invalid encryption mode")
	assert.Equal(t, srv.TotalCalls(), 0, "an invalid mode must fail before any network call")
}

func TestSetCmdPartialFailure(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()
	srv.AddSite(tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled})
	srv.AddSite(tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionDisabled})
	srv.AddSite(tableau.Site{ID: "c", Name: "Sales", ContentURL: "sales", EncryptionMode: tableau.EncryptionDisabled})
	srv.FailUpdate["b"] = true

	cmd := &SetCmd{Mode: "enabled", ConnectionFlags: testFlags(srv)}
	_, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Contains(t, errString, "1 of 3 sites failed")
	assert.Equal(t, srv.CallCount("signout"), 1)

	site, _ := srv.Site("c")
	assert.Equal(t, site.EncryptionMode, tableau.EncryptionEnabled, "sites after the failed one are still processed")
}

func TestSetCmdSignInFailure(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()
	srv.AddSite(tableau.Site{ID: "a", Name: "Default", ContentURL: ""})

	flags := testFlags(srv)
	flags.Password = "wrong"
	cmd := &SetCmd{Mode: "enforced", ConnectionFlags: flags}
	_, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Contains(t, errString, "authentication failed")
	assert.Equal(t, srv.CallCount("sites"), 0)
	assert.Equal(t, srv.CallCount("update"), 0)
}

func TestSetCmdMissingCredentialsNoInput(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()

	flags := testFlags(srv)
	flags.Password = ""
	cmd := &SetCmd{Mode: "enforced", ConnectionFlags: flags}
	_, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Contains(t, errString, "prompting is disabled")
	assert.Equal(t, srv.TotalCalls(), 0)
}

func TestStatusCmd(t *testing.T) {
	srv := tableautest.NewServer("admin", "hunter2")
	defer srv.Close()
	srv.AddSite(tableau.Site{ID: "a", Name: "Default", ContentURL: "", EncryptionMode: tableau.EncryptionDisabled})
	srv.AddSite(tableau.Site{ID: "b", Name: "Finance", ContentURL: "finance", EncryptionMode: tableau.EncryptionEnforced})

	cmd := &StatusCmd{ConnectionFlags: testFlags(srv)}
	out, errString := captureOutput(func() error {
		return cmd.Run(testCtx())
	})

	assert.Equal(t, errString, "")
	assert.Contains(t, out, "Default")
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "Finance")
	assert.Contains(t, out, "enforced")
	assert.Contains(t, out, "2 sites")
	assert.Equal(t, srv.CallCount("update"), 0, "status never writes")
	assert.Equal(t, srv.CallCount("signout"), 1)
}

// captureOutput runs f with stdout and stderr redirected to pipes and
// returns what was printed plus the error text.
func captureOutput(f func() error) (string, string) {
	oldOut := os.Stdout
	oldErr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()

	os.Stdout = wOut
	os.Stderr = wErr

	err := f()

	wOut.Close()
	wErr.Close()

	var outBuf, errBuf bytes.Buffer
	io.Copy(&outBuf, rOut)
	io.Copy(&errBuf, rErr)

	os.Stdout = oldOut
	os.Stderr = oldErr

	if err != nil {
		return outBuf.String(), err.Error()
	}
	return outBuf.String(), errBuf.String()
}
