package service

import (
	"context"
	"testing"

	"smartinfra-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	got, err := env.reportSvc.CreateReport(ctx, CreateReportRequest{
		Title:       strPtr("Deep pothole on 5th"),
		Description: strPtr("Near the bus stop, getting worse after rain"),
		Latitude:    40.7128,
		Longitude:   -74.0060,
		Media: []MediaInput{
			{MediaURL: "https://cdn.example.com/1.jpg", MediaType: domain.MediaImage},
			{MediaURL: "https://cdn.example.com/1.mp4", MediaType: domain.MediaVideo},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportPending, got.Report.Status)
	assert.Equal(t, "Deep pothole on 5th", got.Report.Title.String)
	assert.Len(t, got.Media, 2)

	reloaded, err := env.reportSvc.GetReport(ctx, got.Report.ReportID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Media, 2)
}

func TestCreateReport_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("coordinates out of range", func(t *testing.T) {
		_, err := env.reportSvc.CreateReport(ctx, CreateReportRequest{Latitude: 100, Longitude: 0})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("bad media type", func(t *testing.T) {
		_, err := env.reportSvc.CreateReport(ctx, CreateReportRequest{
			Latitude: 40, Longitude: -74,
			Media: []MediaInput{{MediaURL: "https://cdn.example.com/x.gif", MediaType: "GIF"}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestUpdateReportStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.reportSvc.CreateReport(ctx, CreateReportRequest{Latitude: 40, Longitude: -74})
	require.NoError(t, err)

	severity := int32(4)
	require.NoError(t, env.reportSvc.UpdateStatus(ctx, created.Report.ReportID, domain.ReportVerified, &severity))

	got, err := env.reportSvc.GetReport(ctx, created.Report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportVerified, got.Report.Status)
	assert.Equal(t, int32(4), got.Report.Severity.Int32)

	t.Run("unknown status", func(t *testing.T) {
		err := env.reportSvc.UpdateStatus(ctx, created.Report.ReportID, "ARCHIVED", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestAddMedia(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.reportSvc.CreateReport(ctx, CreateReportRequest{Latitude: 40, Longitude: -74})
	require.NoError(t, err)

	m, err := env.reportSvc.AddMedia(ctx, created.Report.ReportID, MediaInput{
		MediaURL: "https://cdn.example.com/extra.jpg", MediaType: domain.MediaImage,
	})
	require.NoError(t, err)
	assert.Equal(t, created.Report.ReportID, m.ReportID)

	_, err = env.reportSvc.AddMedia(ctx, "missing", MediaInput{
		MediaURL: "https://cdn.example.com/extra.jpg", MediaType: domain.MediaImage,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
