package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmint/linkmint/config"
)

const sampleBlacklist = `# malicious domains snapshot
evil.example
phish.example.net
`

func blacklistServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIsBlacklisted(t *testing.T) {
	ctx := context.Background()
	srv := blacklistServer(t, http.StatusOK, sampleBlacklist)

	svc := NewBlacklistService(config.BlacklistConfig{
		SourceURL:  srv.URL,
		BackupPath: filepath.Join(t.TempDir(), "blacklist.txt"),
	}, nil)

	t.Run("ExactMatch", func(t *testing.T) {
		listed, err := svc.IsBlacklisted(ctx, "evil.example")
		require.NoError(t, err)
		assert.True(t, listed)
	})

	t.Run("SubdomainOfListedDomain", func(t *testing.T) {
		listed, err := svc.IsBlacklisted(ctx, "login.evil.example")
		require.NoError(t, err)
		assert.True(t, listed)
	})

	t.Run("UnlistedDomain", func(t *testing.T) {
		listed, err := svc.IsBlacklisted(ctx, "example.com")
		require.NoError(t, err)
		assert.False(t, listed)
	})

	t.Run("CaseAndTrailingDotInsensitive", func(t *testing.T) {
		listed, err := svc.IsBlacklisted(ctx, "EVIL.Example.")
		require.NoError(t, err)
		assert.True(t, listed)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("WritesBackupFile", func(t *testing.T) {
		srv := blacklistServer(t, http.StatusOK, sampleBlacklist)
		backup := filepath.Join(t.TempDir(), "data", "blacklist.txt")

		svc := NewBlacklistService(config.BlacklistConfig{
			SourceURL:  srv.URL,
			BackupPath: backup,
		}, nil)

		require.NoError(t, svc.Refresh(ctx))

		data, err := os.ReadFile(backup)
		require.NoError(t, err)
		assert.Equal(t, sampleBlacklist, string(data))
	})

	t.Run("FallsBackToBackupFile", func(t *testing.T) {
		srv := blacklistServer(t, http.StatusInternalServerError, "")
		backup := filepath.Join(t.TempDir(), "blacklist.txt")
		require.NoError(t, os.WriteFile(backup, []byte(sampleBlacklist), 0o644))

		svc := NewBlacklistService(config.BlacklistConfig{
			SourceURL:  srv.URL,
			BackupPath: backup,
		}, nil)

		require.NoError(t, svc.Refresh(ctx))

		listed, err := svc.IsBlacklisted(ctx, "phish.example.net")
		require.NoError(t, err)
		assert.True(t, listed)
	})

	t.Run("UnavailableWithoutAnyFallback", func(t *testing.T) {
		srv := blacklistServer(t, http.StatusInternalServerError, "")

		svc := NewBlacklistService(config.BlacklistConfig{
			SourceURL:  srv.URL,
			BackupPath: filepath.Join(t.TempDir(), "missing.txt"),
		}, nil)

		err := svc.Refresh(ctx)
		assert.ErrorIs(t, err, ErrBlacklistUnavailable)

		_, err = svc.IsBlacklisted(ctx, "evil.example")
		assert.ErrorIs(t, err, ErrBlacklistUnavailable)
	})
}

func TestParseDomains(t *testing.T) {
	domains := parseDomains("# comment\n\nEvil.Example\n  spaced.example  \n")
	assert.Len(t, domains, 2)
	_, ok := domains["evil.example"]
	assert.True(t, ok)
	_, ok = domains["spaced.example"]
	assert.True(t, ok)
}
