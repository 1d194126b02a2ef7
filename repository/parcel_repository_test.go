package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/repository"
	testingutil "github.com/jashub/parcelhub/testing"
	"github.com/jashub/parcelhub/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParcelRepository(t *testing.T) {
	testDB := testingutil.RequireTestDB(t)
	repo := repository.NewParcelRepository(testDB.DB)
	fixtures := testingutil.NewTestFixtures(testDB)
	ctx := context.Background()

	t.Run("ByTrackingNumberNormalizes", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		found, err := repo.ByTrackingNumber(ctx, "  jt"+p.TrackingNumber[2:]+" ")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, p.ID, found.ID)

		missing, err := repo.ByTrackingNumber(ctx, "NOPE-404")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ByUUID", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		found, err := repo.ByUUID(ctx, p.UUID.String())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, p.TrackingNumber, found.TrackingNumber)

		_, err = repo.ByUUID(ctx, "not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("DuplicateTrackingNumber", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		dup := &models.Parcel{
			TrackingNumber: p.TrackingNumber,
			RecipientName:  "Someone Else",
			RecipientEmail: "else@campus.edu",
			CourierName:    "Pos Laju",
			PickupCodeHash: p.PickupCodeHash,
		}
		err = repo.Save(ctx, dup)
		require.Error(t, err)
		assert.True(t, repository.IsDuplicateKey(err))
	})

	t.Run("CategoriesRoundTripAndFilter", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel(testingutil.WithCategories("Above 5kg", "Fragile", "March"))
		require.NoError(t, err)

		found, err := repo.ByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Above 5kg", "Fragile", "March"}, []string(found.Categories))

		fragile := "Fragile"
		rows, err := repo.ByFilter(ctx, models.ParcelFilter{Category: &fragile, TrackingNumber: &p.TrackingNumber}, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("TrackingNumberPrefixEscapesWildcards", func(t *testing.T) {
		_, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		prefix := "%"
		rows, err := repo.ByFilter(ctx, models.ParcelFilter{TrackingNumberPrefix: &prefix}, "", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, rows)

		prefix = "jt"
		rows, err = repo.ByFilter(ctx, models.ParcelFilter{TrackingNumberPrefix: &prefix}, "", 0, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, rows)
	})

	t.Run("MarkCollectedOnlyOnce", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkCollected(ctx, p.ID, "Nur Aisyah", utils.UTCNow())
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		found, err := repo.ByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ParcelStatusCollected, found.Status)
		require.NotNil(t, found.CollectedAt)
	})

	t.Run("UpdateStatusIsGuarded", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		ok, err := repo.UpdateStatus(ctx, p.ID, models.ParcelStatusReceived, models.ParcelStatusReturned)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.UpdateStatus(ctx, p.ID, models.ParcelStatusReceived, models.ParcelStatusReturned)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.MarkCollected(ctx, p.ID, "x", utils.UTCNow())
		require.NoError(t, err)
		assert.False(t, ok, "returned parcels cannot be collected")
	})

	t.Run("UpdateSkipsCollectedParcels", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		p.Remarks = utils.ToPtr("top shelf")
		ok, err := repo.Update(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkCollected(ctx, p.ID, "Nur Aisyah", utils.UTCNow())
		require.NoError(t, err)
		require.True(t, ok)

		p.Remarks = utils.ToPtr("after collection")
		ok, err = repo.Update(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.ByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, found.Remarks)
		assert.Equal(t, "top shelf", *found.Remarks)
	})

	t.Run("CreatedAtDefaultsToNow", func(t *testing.T) {
		err := testDB.DB.Exec(`INSERT INTO parcels (uuid, tracking_number, recipient_name, recipient_email, courier_name, pickup_code_hash, status)
			VALUES (gen_random_uuid(), 'RAW-NOW-1', 'Raw Insert', 'raw@example.edu', 'DHL', 'x', 'Received')`).Error
		require.NoError(t, err)

		found, err := repo.ByTrackingNumber(ctx, "RAW-NOW-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.WithinDuration(t, time.Now(), found.CreatedAt, time.Minute)
		assert.WithinDuration(t, time.Now(), found.UpdatedAt, time.Minute)
	})

	t.Run("DeleteUncollected", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)
		_, err = fixtures.CreateTestPayment(p, models.PaymentMethodCash, 1, 0, utils.UTCNow())
		require.NoError(t, err)

		ok, err := repo.DeleteUncollected(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		q, err := fixtures.CreateTestParcel()
		require.NoError(t, err)
		ok, err = repo.DeleteUncollected(ctx, q.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("UpdateReminderMonthsNeverDecreases", func(t *testing.T) {
		p, err := fixtures.CreateTestParcel()
		require.NoError(t, err)

		require.NoError(t, repo.UpdateReminderMonths(ctx, p.ID, 2))
		require.NoError(t, repo.UpdateReminderMonths(ctx, p.ID, 1))

		found, err := repo.ByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.ReminderMonths)
	})

	t.Run("ListOverdueCandidates", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		old, err := fixtures.CreateTestParcel(testingutil.ReceivedDaysAgo(45))
		require.NoError(t, err)
		older, err := fixtures.CreateTestParcel(testingutil.ReceivedDaysAgo(90))
		require.NoError(t, err)
		_, err = fixtures.CreateTestParcel(testingutil.ReceivedDaysAgo(5))
		require.NoError(t, err)
		_, err = fixtures.CreateTestParcel(testingutil.ReceivedDaysAgo(60), testingutil.WithStatus(models.ParcelStatusReturned))
		require.NoError(t, err)

		cutoff := utils.UTCNow().Add(-30 * 24 * time.Hour)
		rows, err := repo.ListOverdueCandidates(ctx, cutoff, nil, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, older.ID, rows[0].ID)
		assert.Equal(t, old.ID, rows[1].ID)

		first, err := repo.ListOverdueCandidates(ctx, cutoff, nil, 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, older.ID, first[0].ID)

		next, err := repo.ListOverdueCandidates(ctx, cutoff, models.CursorOf(first[0]), 1)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, old.ID, next[0].ID)

		last, err := repo.ListOverdueCandidates(ctx, cutoff, models.CursorOf(next[0]), 1)
		require.NoError(t, err)
		assert.Empty(t, last)
	})

	t.Run("Aggregates", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		for i := 0; i < 2; i++ {
			_, err := fixtures.CreateTestParcel(testingutil.WithCourier("Pos Laju"))
			require.NoError(t, err)
		}
		_, err := fixtures.CreateTestParcel(testingutil.WithStatus(models.ParcelStatusReturned))
		require.NoError(t, err)

		statuses, err := repo.StatusCounts(ctx, nil, nil)
		require.NoError(t, err)
		counts := map[string]int64{}
		for _, s := range statuses {
			counts[s.Status] = s.Count
		}
		assert.Equal(t, int64(2), counts[models.ParcelStatusReceived])
		assert.Equal(t, int64(1), counts[models.ParcelStatusReturned])

		couriers, err := repo.CourierCounts(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, couriers, 2)
		assert.Equal(t, "Pos Laju", couriers[0].CourierName)
		assert.Equal(t, int64(2), couriers[0].Count)

		future := utils.UTCNow().Add(time.Hour)
		statuses, err = repo.StatusCounts(ctx, &future, nil)
		require.NoError(t, err)
		assert.Empty(t, statuses)
	})
}

func TestTransactorRollsBack(t *testing.T) {
	testDB := testingutil.RequireTestDB(t)
	tx := repository.NewTransactor(testDB.DB)
	parcelRepo := repository.NewParcelRepository(testDB.DB)
	eventRepo := repository.NewParcelEventRepository(testDB.DB)
	ctx := context.Background()

	boom := errors.New("boom")
	var parcel *models.Parcel
	err := tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		parcel = &models.Parcel{
			TrackingNumber: "ROLLBACK-1",
			RecipientName:  "Rollback",
			RecipientEmail: "rb@campus.edu",
			CourierName:    "DHL",
			PickupCodeHash: "x",
		}
		if err := parcelRepo.Save(txCtx, parcel); err != nil {
			return err
		}
		if err := eventRepo.Save(txCtx, &models.ParcelEvent{ParcelID: parcel.ID, Status: models.ParcelStatusReceived}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := parcelRepo.ByTrackingNumber(ctx, "ROLLBACK-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}
