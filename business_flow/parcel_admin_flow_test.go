package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/config"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/utils"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminEnv struct {
	store   *store
	cache   *memCache
	metrics *recordingMetrics
	codes   *plainCodes
	sms     *services.MockSMSProvider
	email   *services.MockEmailProvider
	flow    ParcelAdminFlow
}

func newAdminEnv() *adminEnv {
	s := newStore()
	env := &adminEnv{
		store:   s,
		cache:   newMemCache(),
		metrics: &recordingMetrics{},
		codes:   &plainCodes{next: "482913"},
		sms:     services.NewMockSMSProvider(),
		email:   services.NewMockEmailProvider(),
	}
	env.flow = NewParcelAdminFlow(
		fakeTx{s},
		&fakeParcelRepo{s},
		&fakeEventRepo{s},
		&fakePaymentRepo{s},
		env.cache,
		env.codes,
		services.NewNotificationService(env.sms, env.email),
		fixedCalc(),
		env.metrics,
		config.NotificationConfig{HubName: "JasHub", HubOpeningHour: "9am - 6pm"},
	)
	return env
}

func adminMeta() *ClientMetadata {
	md := NewClientMetadata("10.0.0.5", "test")
	md.SetActor("desk-1")
	return md
}

func receiveRequest(tn string) *dto.ReceiveParcelRequest {
	return &dto.ReceiveParcelRequest{
		TrackingNumber: tn,
		RecipientName:  " Nur Aisyah ",
		RecipientEmail: "Aisyah@Student.Example.edu",
		RecipientPhone: utils.ToPtr("+60 12-345 6789"),
		CourierName:    "J&T",
		Categories:     []string{"Fragile", "1kg", " ", "Fragile", "March"},
	}
}

func TestParcelAdminFlow_Receive(t *testing.T) {
	env := newAdminEnv()

	resp, err := env.flow.Receive(context.Background(), receiveRequest("jnt-777"), adminMeta())
	require.NoError(t, err)

	assert.Equal(t, "482913", resp.PickupCode)
	assert.Equal(t, "JNT-777", resp.Parcel.TrackingNumber)
	assert.Equal(t, "Nur Aisyah", resp.Parcel.RecipientName)
	assert.Equal(t, "aisyah@student.example.edu", resp.Parcel.RecipientEmail)
	assert.Equal(t, []string{"Fragile", "1kg", "March"}, resp.Parcel.Categories)
	assert.Equal(t, models.ParcelStatusReceived, resp.Parcel.Status)
	assert.Equal(t, 1.0, resp.Parcel.Pricing.TotalPrice)
	assert.Equal(t, 0, resp.Parcel.Pricing.DaysHeld)

	stored := env.store.parcel(resp.Parcel.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "hash:482913", stored.PickupCodeHash)
	assert.True(t, stored.CreatedAt.Equal(testNow))

	events := env.store.eventsOf(stored.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.ParcelStatusReceived, events[0].Status)
	assert.Equal(t, "desk-1", events[0].Actor)

	assert.Equal(t, []string{"J&T"}, env.metrics.received)
	assert.Contains(t, env.cache.invalidated, "JNT-777")

	assert.Eventually(t, func() bool { return len(env.email.Sent()) == 1 && len(env.sms.Messages()) == 1 }, time.Second, 10*time.Millisecond)
	mail := env.email.Sent()[0]
	assert.Equal(t, "aisyah@student.example.edu", mail.Recipient)
	assert.Contains(t, mail.Subject, "JNT-777")
	assert.Contains(t, mail.Body, "482913")
	assert.Contains(t, mail.Body, "9am - 6pm")
	assert.Contains(t, env.sms.Messages()[0].Message, "482913")
}

func TestParcelAdminFlow_ReceiveWithoutPhoneSkipsSMS(t *testing.T) {
	env := newAdminEnv()
	req := receiveRequest("NOPHONE-1")
	req.RecipientPhone = nil

	_, err := env.flow.Receive(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(env.email.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, env.sms.Messages())
}

func TestParcelAdminFlow_ReceiveDuplicate(t *testing.T) {
	env := newAdminEnv()
	_, err := env.flow.Receive(context.Background(), receiveRequest("DUP-1"), nil)
	require.NoError(t, err)

	_, err = env.flow.Receive(context.Background(), receiveRequest(" dup-1"), nil)
	assert.True(t, IsTrackingNumberExists(err))
}

func TestParcelAdminFlow_ReceiveWithBasePriceOverride(t *testing.T) {
	env := newAdminEnv()
	req := receiveRequest("OVR-1")
	req.BasePrice = utils.ToPtr(7.5)

	resp, err := env.flow.Receive(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 7.5, resp.Parcel.Pricing.BasePrice)
	require.NotNil(t, resp.Parcel.BasePrice)
}

func TestParcelAdminFlow_List(t *testing.T) {
	env := newAdminEnv()
	env.store.addParcel(&models.Parcel{TrackingNumber: "JNT-1", CourierName: "J&T", Categories: pq.StringArray{"1kg", "Fragile"}, CreatedAt: daysBefore(40)})
	env.store.addParcel(&models.Parcel{TrackingNumber: "JNT-2", CourierName: "J&T", Categories: pq.StringArray{"3kg"}, CreatedAt: daysBefore(5)})
	env.store.addParcel(&models.Parcel{TrackingNumber: "DHL-1", CourierName: "DHL", Categories: pq.StringArray{"5kg"}, CreatedAt: daysBefore(1)})

	resp, err := env.flow.List(context.Background(), &dto.AdminListParcelsRequest{CourierName: utils.ToPtr("J&T")}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "JNT-2", resp.Items[0].TrackingNumber)
	assert.Equal(t, 21.0, resp.Items[1].Pricing.TotalPrice)

	resp, err = env.flow.List(context.Background(), &dto.AdminListParcelsRequest{Category: utils.ToPtr("Fragile")}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "JNT-1", resp.Items[0].TrackingNumber)

	resp, err = env.flow.List(context.Background(), &dto.AdminListParcelsRequest{TrackingNumberPrefix: utils.ToPtr("dhl")}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	from, to := daysBefore(10), daysBefore(2)
	resp, err = env.flow.List(context.Background(), &dto.AdminListParcelsRequest{ReceivedFrom: &from, ReceivedTo: &to}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "JNT-2", resp.Items[0].TrackingNumber)

	resp, err = env.flow.List(context.Background(), &dto.AdminListParcelsRequest{Page: 2, PageSize: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, int64(2), resp.Pagination.TotalPages)
}

func TestParcelAdminFlow_ListValidation(t *testing.T) {
	env := newAdminEnv()

	_, err := env.flow.List(context.Background(), &dto.AdminListParcelsRequest{PageSize: 500}, nil)
	assert.True(t, IsInvalidPageSize(err))

	from, to := daysBefore(1), daysBefore(10)
	_, err = env.flow.List(context.Background(), &dto.AdminListParcelsRequest{ReceivedFrom: &from, ReceivedTo: &to}, nil)
	assert.True(t, IsStartDateAfterEndDate(err))
}

func TestParcelAdminFlow_GetAndUpdate(t *testing.T) {
	env := newAdminEnv()
	created, err := env.flow.Receive(context.Background(), receiveRequest("UPD-1"), nil)
	require.NoError(t, err)
	id := created.Parcel.UUID

	got, err := env.flow.Get(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Len(t, got.Parcel.Timeline, 1)

	_, err = env.flow.Update(context.Background(), &dto.UpdateParcelRequest{UUID: id}, nil)
	assert.True(t, IsNothingToUpdate(err))

	updated, err := env.flow.Update(context.Background(), &dto.UpdateParcelRequest{
		UUID:          id,
		Categories:    []string{"Above 5kg"},
		ShelfLocation: utils.ToPtr("B-12"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Above 5kg"}, updated.Parcel.Categories)
	assert.Equal(t, 5.0, updated.Parcel.Pricing.BasePrice)
	require.NotNil(t, updated.Parcel.ShelfLocation)
	assert.Equal(t, "B-12", *updated.Parcel.ShelfLocation)

	updated, err = env.flow.Update(context.Background(), &dto.UpdateParcelRequest{UUID: id, BasePrice: utils.ToPtr(9.0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 9.0, updated.Parcel.Pricing.BasePrice)

	updated, err = env.flow.Update(context.Background(), &dto.UpdateParcelRequest{UUID: id, ClearBasePrice: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.Parcel.BasePrice)
	assert.Equal(t, 5.0, updated.Parcel.Pricing.BasePrice)

	// hash and status are not touched by descriptive updates
	stored := env.store.parcel(created.Parcel.ID)
	assert.Equal(t, "hash:482913", stored.PickupCodeHash)
}

func TestParcelAdminFlow_InvalidAndMissingIDs(t *testing.T) {
	env := newAdminEnv()

	_, err := env.flow.Get(context.Background(), "not-a-uuid", nil)
	assert.True(t, IsInvalidParcelID(err))

	_, err = env.flow.Get(context.Background(), "5f1c3b5e-3f6a-4c38-9d6e-1a2b3c4d5e6f", nil)
	assert.True(t, IsParcelNotFound(err))
}

func TestParcelAdminFlow_CollectedParcelsAreImmutable(t *testing.T) {
	env := newAdminEnv()
	collectedAt := daysBefore(1)
	p := env.store.addParcel(&models.Parcel{
		TrackingNumber: "DONE-1",
		CourierName:    "DHL",
		Status:         models.ParcelStatusCollected,
		CollectedAt:    &collectedAt,
		CreatedAt:      daysBefore(3),
	})
	id := p.UUID.String()

	_, err := env.flow.Update(context.Background(), &dto.UpdateParcelRequest{UUID: id, Remarks: utils.ToPtr("x")}, nil)
	assert.True(t, IsParcelCollectedImmutable(err))

	_, err = env.flow.UpdateStatus(context.Background(), &dto.UpdateParcelStatusRequest{UUID: id, Status: models.ParcelStatusReturned}, nil)
	assert.True(t, IsParcelCollectedImmutable(err))

	_, err = env.flow.Delete(context.Background(), id, nil)
	assert.True(t, IsParcelCollectedImmutable(err))

	_, err = env.flow.RegeneratePickupCode(context.Background(), id, nil)
	assert.True(t, IsParcelAlreadyCollected(err))
}

func TestParcelAdminFlow_UpdateStatus(t *testing.T) {
	env := newAdminEnv()
	created, err := env.flow.Receive(context.Background(), receiveRequest("RET-1"), nil)
	require.NoError(t, err)
	id := created.Parcel.UUID

	_, err = env.flow.UpdateStatus(context.Background(), &dto.UpdateParcelStatusRequest{UUID: id, Status: models.ParcelStatusReceived}, nil)
	assert.True(t, IsInvalidStatusTransition(err))

	resp, err := env.flow.UpdateStatus(context.Background(), &dto.UpdateParcelStatusRequest{UUID: id, Status: models.ParcelStatusReturned, Note: "Unclaimed"}, adminMeta())
	require.NoError(t, err)
	assert.Equal(t, models.ParcelStatusReturned, resp.Parcel.Status)
	require.Len(t, resp.Parcel.Timeline, 2)
	assert.Equal(t, "Unclaimed", resp.Parcel.Timeline[1].Note)

	_, err = env.flow.RegeneratePickupCode(context.Background(), id, nil)
	assert.True(t, IsParcelReturned(err))

	resp, err = env.flow.UpdateStatus(context.Background(), &dto.UpdateParcelStatusRequest{UUID: id, Status: models.ParcelStatusReceived}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ParcelStatusReceived, resp.Parcel.Status)
}

func TestParcelAdminFlow_DeleteAndRegenerate(t *testing.T) {
	env := newAdminEnv()
	created, err := env.flow.Receive(context.Background(), receiveRequest("DEL-1"), nil)
	require.NoError(t, err)
	id := created.Parcel.UUID

	env.codes.next = "000777"
	regen, err := env.flow.RegeneratePickupCode(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, "000777", regen.PickupCode)
	assert.Equal(t, "hash:000777", env.store.parcel(created.Parcel.ID).PickupCodeHash)

	del, err := env.flow.Delete(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, id, del.UUID)
	assert.Nil(t, env.store.parcel(created.Parcel.ID))

	_, err = env.flow.Delete(context.Background(), id, nil)
	assert.True(t, IsParcelNotFound(err))
}

// staleParcelRepo serves the parcel as it was before a concurrent collection landed
type staleParcelRepo struct {
	*fakeParcelRepo
	stale *models.Parcel
}

func (r *staleParcelRepo) ByUUID(_ context.Context, _ string) (*models.Parcel, error) {
	cp := *r.stale
	return &cp, nil
}

func TestParcelAdminFlow_UpdateLosesRaceWithCollection(t *testing.T) {
	s := newStore()
	p := s.addParcel(&models.Parcel{
		TrackingNumber: "RACE-1",
		CourierName:    "DHL",
		CreatedAt:      daysBefore(2),
	})
	stale := *p

	collectedAt := daysBefore(0)
	s.mu.Lock()
	s.parcels[p.ID].Status = models.ParcelStatusCollected
	s.parcels[p.ID].CollectedAt = &collectedAt
	s.mu.Unlock()

	cache := newMemCache()
	flow := NewParcelAdminFlow(
		fakeTx{s},
		&staleParcelRepo{fakeParcelRepo: &fakeParcelRepo{s}, stale: &stale},
		&fakeEventRepo{s},
		&fakePaymentRepo{s},
		cache,
		&plainCodes{next: "111111"},
		services.NewNotificationService(services.NewMockSMSProvider(), services.NewMockEmailProvider()),
		fixedCalc(),
		&recordingMetrics{},
		config.NotificationConfig{HubName: "JasHub"},
	)

	_, err := flow.Update(context.Background(), &dto.UpdateParcelRequest{
		UUID:    p.UUID.String(),
		Remarks: utils.ToPtr("late edit"),
	}, adminMeta())
	assert.True(t, IsParcelCollectedImmutable(err))

	stored := s.parcel(p.ID)
	assert.Equal(t, models.ParcelStatusCollected, stored.Status)
	assert.Nil(t, stored.Remarks)
}
