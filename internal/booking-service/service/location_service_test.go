package service_test

import (
	"context"
	"testing"

	"carpool/internal/booking-service/domain"
	"carpool/internal/booking-service/repository/memory"
	"carpool/internal/booking-service/service"
	"carpool/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocationService() (*service.LocationService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := service.NewLocationService(memory.NewLocationRepository(), notifier, logger.NewLogger("test"))
	return svc, notifier
}

func TestUpdateLocationUpserts(t *testing.T) {
	svc, notifier := newLocationService()
	heading := 180.0

	err := svc.Update(context.Background(), &domain.DriverLocation{
		DriverID:  "driver-1",
		Latitude:  52.52,
		Longitude: 13.405,
		Heading:   &heading,
	})
	require.NoError(t, err)

	err = svc.Update(context.Background(), &domain.DriverLocation{
		DriverID:  "driver-1",
		Latitude:  52.53,
		Longitude: 13.41,
	})
	require.NoError(t, err)

	location, err := svc.Get(context.Background(), "driver-1")
	require.NoError(t, err)
	assert.Equal(t, 52.53, location.Latitude)
	assert.False(t, location.UpdatedAt.IsZero())

	events := notifier.EventsOfType(domain.EventDriverLocation)
	require.Len(t, events, 2)
	assert.Equal(t, "driver-1", events[0].ActorID)
	assert.Equal(t, 180.0, events[0].Data["heading"])
}

func TestUpdateLocationValidation(t *testing.T) {
	svc, notifier := newLocationService()
	badHeading := 360.0

	cases := []struct {
		name     string
		location domain.DriverLocation
	}{
		{"missing driver", domain.DriverLocation{Latitude: 52, Longitude: 13}},
		{"latitude out of range", domain.DriverLocation{DriverID: "d", Latitude: 91, Longitude: 13}},
		{"longitude out of range", domain.DriverLocation{DriverID: "d", Latitude: 52, Longitude: -181}},
		{"heading out of range", domain.DriverLocation{DriverID: "d", Latitude: 52, Longitude: 13, Heading: &badHeading}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Update(context.Background(), &tc.location)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, notifier.Events())
}

func TestGetUnknownDriverLocation(t *testing.T) {
	svc, _ := newLocationService()

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
