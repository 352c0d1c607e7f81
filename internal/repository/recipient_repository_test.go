package repository

import (
	"context"
	"testing"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCampaign(t *testing.T, db *testDB, name string) *model.Campaign {
	t.Helper()
	repo := NewCampaignRepository(db.DB)
	c, err := repo.Create(context.Background(), &model.Campaign{Name: name, Status: model.CampaignStatusScheduled})
	require.NoError(t, err)
	return c
}

func TestRecipientRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "march promo")
	ctx := context.Background()

	when := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, &model.Recipient{
		CampaignID:   campaign.ID,
		Phone:        "+60123456789",
		Name:         "Ali",
		Variables:    map[string]string{"nama": "Ali", "item": "iPhone 12"},
		Status:       model.RecipientStatusScheduled,
		ScheduledFor: &when,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "+60123456789", got.Phone)
	assert.Equal(t, map[string]string{"nama": "Ali", "item": "iPhone 12"}, got.Variables)
	assert.Equal(t, model.RecipientStatusScheduled, got.Status)
}

func TestRecipientRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)

	_, err := repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestRecipientRepository_ExistingPhones(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	other := seedCampaign(t, db, "other")
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Recipient{CampaignID: campaign.ID, Phone: "+60123456789"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Recipient{CampaignID: other.ID, Phone: "+60199999999"})
	require.NoError(t, err)

	existing, err := repo.ExistingPhones(ctx, campaign.ID, []string{"+60123456789", "+60199999999"})
	require.NoError(t, err)
	assert.Contains(t, existing, "+60123456789")
	// Same phone in another campaign does not count.
	assert.NotContains(t, existing, "+60199999999")
}

func TestRecipientRepository_FindDue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past1 := now.Add(-2 * time.Minute)
	past2 := now.Add(-1 * time.Minute)
	future := now.Add(time.Hour)

	for _, rec := range []*model.Recipient{
		{CampaignID: campaign.ID, Phone: "+60100000002", Status: model.RecipientStatusScheduled, ScheduledFor: &past2},
		{CampaignID: campaign.ID, Phone: "+60100000001", Status: model.RecipientStatusScheduled, ScheduledFor: &past1},
		{CampaignID: campaign.ID, Phone: "+60100000003", Status: model.RecipientStatusScheduled, ScheduledFor: &future},
		{CampaignID: campaign.ID, Phone: "+60100000004", Status: model.RecipientStatusSent, ScheduledFor: &past1},
	} {
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)
	}

	due, campaigns, err := repo.FindDue(ctx, now, 25)
	require.NoError(t, err)
	require.Len(t, due, 2)
	// Oldest first.
	assert.Equal(t, "+60100000001", due[0].Phone)
	assert.Equal(t, "+60100000002", due[1].Phone)
	require.Contains(t, campaigns, campaign.ID)
	assert.Equal(t, "promo", campaigns[campaign.ID].Name)
}

func TestRecipientRepository_FindDue_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		when := now.Add(time.Duration(-i) * time.Minute)
		_, err := repo.Create(ctx, &model.Recipient{
			CampaignID:   campaign.ID,
			Phone:        "+6010000000" + string(rune('0'+i)),
			Status:       model.RecipientStatusScheduled,
			ScheduledFor: &when,
		})
		require.NoError(t, err)
	}

	due, _, err := repo.FindDue(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestRecipientRepository_FindActiveByPhones(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	a := seedCampaign(t, db, "campaign a")
	b := seedCampaign(t, db, "campaign b")
	ctx := context.Background()

	src, err := repo.Create(ctx, &model.Recipient{CampaignID: a.ID, Phone: "+60123456789", Status: model.RecipientStatusScheduled})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Recipient{CampaignID: b.ID, Phone: "+60123456789", Status: model.RecipientStatusScheduled})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Recipient{CampaignID: b.ID, Phone: "+60123456789", Status: model.RecipientStatusSent})
	require.NoError(t, err)

	matches, err := repo.FindActiveByPhones(ctx, []string{"+60123456789"}, src.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, b.ID, matches[0].CampaignID)
	assert.Equal(t, model.RecipientStatusScheduled, matches[0].Status)
}

func TestRecipientRepository_UpdateAndCountRemaining(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	rec, err := repo.Create(ctx, &model.Recipient{CampaignID: campaign.ID, Phone: "+60123456789", Status: model.RecipientStatusScheduled})
	require.NoError(t, err)

	remaining, err := repo.CountRemaining(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	now := time.Now().UTC()
	rec.Status = model.RecipientStatusSent
	rec.SentAt = &now
	require.NoError(t, repo.Update(ctx, rec))

	remaining, err = repo.CountRemaining(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecipientStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
}

func TestRecipientRepository_Events(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	rec, err := repo.Create(ctx, &model.Recipient{CampaignID: campaign.ID, Phone: "+60123456789"})
	require.NoError(t, err)

	_, err = repo.AppendEvent(ctx, &model.RecipientEvent{
		RecipientID: rec.ID,
		Type:        model.EventQueued,
		Payload:     map[string]interface{}{"scheduled_for_local": "2025-03-10 09:00"},
	})
	require.NoError(t, err)

	events, err := repo.ListEvents(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventQueued, events[0].Type)
	assert.Equal(t, "2025-03-10 09:00", events[0].Payload["scheduled_for_local"])
}

func TestRecipientRepository_Metrics(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecipientRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []*model.Recipient{
		{CampaignID: campaign.ID, Phone: "+60100000001", Status: model.RecipientStatusScheduled},
		{CampaignID: campaign.ID, Phone: "+60100000002", Status: model.RecipientStatusSent, SentAt: &now},
		{CampaignID: campaign.ID, Phone: "+60100000003", Status: model.RecipientStatusRead, SentAt: &now, DeliveredAt: &now, ReadAt: &now},
		{CampaignID: campaign.ID, Phone: "+60100000004", Status: model.RecipientStatusOptedOut, OptOutAt: &now},
		{CampaignID: campaign.ID, Phone: "+60100000005", Status: model.RecipientStatusFailed, Error: "provider timeout"},
	}
	for _, rec := range recs {
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)
	}

	m, err := repo.Metrics(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.Total)
	assert.Equal(t, int64(1), m.Scheduled)
	assert.Equal(t, int64(2), m.Sent)
	assert.Equal(t, int64(1), m.Delivered)
	assert.Equal(t, int64(1), m.Read)
	assert.Equal(t, int64(1), m.OptedOut)
	assert.Equal(t, int64(1), m.Failed)
}
