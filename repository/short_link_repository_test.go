package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkmint/linkmint/codegen"
	"github.com/linkmint/linkmint/models"
	"github.com/linkmint/linkmint/repository"
	apptesting "github.com/linkmint/linkmint/testing"
	"github.com/linkmint/linkmint/utils"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// scriptedGenerator returns canned codes in order, ignoring the
// uniqueness check, to drive the insert-collision paths.
type scriptedGenerator struct {
	codes      []string
	calls      int
	onGenerate func()
}

func (g *scriptedGenerator) Generate(ctx context.Context, exists codegen.ExistsFunc) (string, error) {
	if g.onGenerate != nil {
		g.onGenerate()
	}
	code := g.codes[g.calls]
	g.calls++
	return code, nil
}

func TestShortLinkRepository(t *testing.T) {
	if !apptesting.Available() {
		t.Skip("PostgreSQL test server not available")
	}

	err := apptesting.TestWithDB(func(tdb *apptesting.TestDB) error {
		ctx := apptesting.CreateTestContext()
		gen, err := codegen.NewGenerator(6)
		require.NoError(t, err)
		repo := repository.NewShortLinkRepository(tdb.DB, gen)
		fixtures := apptesting.NewTestFixtures(tdb.DB)

		t.Run("CreateAssignsFreshCode", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			row, created, err := repo.Create(ctx, "https://example.com/a", nil)
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, "https://example.com/a", row.OriginalURL)
			assert.Equal(t, int64(0), row.Clicks)
			require.Len(t, row.Code, 6)
			for _, r := range row.Code {
				assert.Contains(t, codeAlphabet, string(r))
			}
		})

		t.Run("CreateDeduplicatesLiveURL", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			first, created, err := repo.Create(ctx, "https://example.com/a", nil)
			require.NoError(t, err)
			require.True(t, created)

			second, created, err := repo.Create(ctx, "https://example.com/a", nil)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, first.Code, second.Code)

			count, err := repo.Count(ctx, models.ShortLinkFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ExpiredRecordDoesNotDeduplicate", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			expired, err := fixtures.CreateExpiredShortLink()
			require.NoError(t, err)

			row, created, err := repo.Create(ctx, expired.OriginalURL, nil)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotEqual(t, expired.Code, row.Code)

			count, err := repo.Count(ctx, models.ShortLinkFilter{OriginalURL: &expired.OriginalURL})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		t.Run("ByCodeFiltersLiveness", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			live, err := fixtures.CreateShortLink()
			require.NoError(t, err)
			expired, err := fixtures.CreateExpiredShortLink()
			require.NoError(t, err)

			found, err := repo.ByCode(ctx, live.Code)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, live.ID, found.ID)

			gone, err := repo.ByCode(ctx, expired.Code)
			require.NoError(t, err)
			assert.Nil(t, gone)
		})

		t.Run("CodeExistsIgnoresLiveness", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			expired, err := fixtures.CreateExpiredShortLink()
			require.NoError(t, err)

			taken, err := repo.CodeExists(ctx, expired.Code)
			require.NoError(t, err)
			assert.True(t, taken)

			taken, err = repo.CodeExists(ctx, "ZZZZZ9")
			require.NoError(t, err)
			assert.False(t, taken)
		})

		t.Run("LookupByUUIDAndURL", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			live, err := fixtures.CreateShortLink()
			require.NoError(t, err)

			byUUID, err := repo.ByUUID(ctx, live.UUID)
			require.NoError(t, err)
			require.NotNil(t, byUUID)
			assert.Equal(t, live.ID, byUUID.ID)

			byID, err := repo.ByID(ctx, live.ID)
			require.NoError(t, err)
			require.NotNil(t, byID)
			assert.Equal(t, live.Code, byID.Code)

			byURL, err := repo.ByOriginalURL(ctx, live.OriginalURL)
			require.NoError(t, err)
			require.NotNil(t, byURL)
			assert.Equal(t, live.Code, byURL.Code)

			missing, err := repo.ByOriginalURL(ctx, "https://example.com/never")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("ListReturnsInsertionOrderIncludingExpired", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			first, err := fixtures.CreateShortLink()
			require.NoError(t, err)
			expired, err := fixtures.CreateExpiredShortLink()
			require.NoError(t, err)
			third, err := fixtures.CreateShortLink()
			require.NoError(t, err)

			rows, err := repo.List(ctx, 0, 100)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, first.ID, rows[0].ID)
			assert.Equal(t, expired.ID, rows[1].ID)
			assert.Equal(t, third.ID, rows[2].ID)

			page, err := repo.List(ctx, 1, 1)
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, expired.ID, page[0].ID)
		})

		t.Run("CountWithLivenessFilter", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			_, err := fixtures.CreateShortLink()
			require.NoError(t, err)
			_, err = fixtures.CreateExpiredShortLink()
			require.NoError(t, err)

			total, err := repo.Count(ctx, models.ShortLinkFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)

			live, err := repo.Count(ctx, models.ShortLinkFilter{LiveOnly: true})
			require.NoError(t, err)
			assert.Equal(t, int64(1), live)
		})

		t.Run("IncrementClicksBumpsCounterAndUpdated", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			row, _, err := repo.Create(ctx, "https://example.com/a", nil)
			require.NoError(t, err)

			time.Sleep(10 * time.Millisecond)
			refreshed, err := repo.IncrementClicks(ctx, row)
			require.NoError(t, err)
			assert.Equal(t, int64(1), refreshed.Clicks)
			assert.True(t, refreshed.UpdatedAt.After(row.UpdatedAt))

			refreshed, err = repo.IncrementClicks(ctx, refreshed)
			require.NoError(t, err)
			assert.Equal(t, int64(2), refreshed.Clicks)
		})

		t.Run("DeleteRemovesRecord", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			live, err := fixtures.CreateShortLink()
			require.NoError(t, err)

			assert.True(t, repo.Delete(ctx, live))

			gone, err := repo.ByCode(ctx, live.Code)
			require.NoError(t, err)
			assert.Nil(t, gone)

			// Second delete finds nothing to remove.
			assert.False(t, repo.Delete(ctx, live))
		})

		t.Run("InsertCollisionRetriesWithFreshCode", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			taken, err := fixtures.CreateShortLink()
			require.NoError(t, err)

			gen := &scriptedGenerator{codes: []string{taken.Code, "FRESH1"}}
			scripted := repository.NewShortLinkRepository(tdb.DB, gen)

			row, created, err := scripted.Create(ctx, "https://example.com/other", nil)
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, "FRESH1", row.Code)
			assert.Equal(t, 2, gen.calls)
		})

		t.Run("ConcurrentIdenticalInsertReturnsWinner", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			const url = "https://example.com/raced"
			var winner *models.ShortLink
			gen := &scriptedGenerator{codes: []string{"RACE01"}}
			// A second writer lands the same URL between the dedup
			// lookup and the insert.
			gen.onGenerate = func() {
				w, err := fixtures.CreateShortLinkForURL(url)
				require.NoError(t, err)
				winner = w
			}
			scripted := repository.NewShortLinkRepository(tdb.DB, gen)

			row, created, err := scripted.Create(ctx, url, nil)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, winner.ID, row.ID)
			assert.Equal(t, winner.Code, row.Code)
		})

		t.Run("WithinTransactionRollsBackOnError", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			aborted := errors.New("abort")
			err := repo.WithinTransaction(ctx, func(txCtx context.Context) error {
				_, created, err := repo.Create(txCtx, "https://example.com/tx", nil)
				require.NoError(t, err)
				require.True(t, created)
				return aborted
			})
			assert.ErrorIs(t, err, aborted)

			count, err := repo.Count(ctx, models.ShortLinkFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})

		t.Run("ExpiringLinkStaysLiveUntilDeadline", func(t *testing.T) {
			require.NoError(t, tdb.ClearAllTables())

			row, _, err := repo.Create(ctx, "https://example.com/soon", utils.UTCNowAddPtr(time.Hour))
			require.NoError(t, err)
			assert.False(t, repo.IsExpired(row))

			found, err := repo.ByCode(ctx, row.Code)
			require.NoError(t, err)
			assert.NotNil(t, found)
		})

		return nil
	})
	require.NoError(t, err)
}
