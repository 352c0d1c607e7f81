package repository

import (
	"context"
	"testing"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignRepository_UpdateTemplate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	err := repo.UpdateTemplate(ctx, campaign.ID, "Hi {{nama}}, your {{item}} is ready", []string{"nama", "item"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi {{nama}}, your {{item}} is ready", got.Template)
	assert.Equal(t, []string{"nama", "item"}, got.TemplateVars)
}

func TestCampaignRepository_UpdateTemplate_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)

	err := repo.UpdateTemplate(context.Background(), 404, "x", nil)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCampaignRepository_MarkRunningOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	first := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkRunning(ctx, campaign.ID, first))

	// A later tick must not move started_at.
	require.NoError(t, repo.MarkRunning(ctx, campaign.ID, first.Add(time.Hour)))

	got, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(first))
}

func TestCampaignRepository_MarkCompleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepository(db.DB)
	campaign := seedCampaign(t, db, "promo")
	ctx := context.Background()

	done := time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkCompleted(ctx, campaign.ID, done))

	got, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}
