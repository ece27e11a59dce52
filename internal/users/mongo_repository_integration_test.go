package users

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"farewatch/internal/config"
	"farewatch/internal/logger"
	apperrors "farewatch/pkg/errors"
	"farewatch/pkg/migrations"
	"farewatch/pkg/models"
)

func TestMongoRepository_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("FAREWATCH_INTEGRATION") != "1" {
		t.Skip("set FAREWATCH_INTEGRATION=1 to run mongodb integration tests")
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("farewatch_test")
	require.NoError(t, migrations.EnsureUsersCollection(ctx, db, "users"))
	require.NoError(t, migrations.EnsureUsersCollection(ctx, db, "users"))

	repo := NewMongoRepository(db, "users")
	svc := NewService(repo, config.CircuitBreakerConfig{}, logger.NopLogger())

	user, err := svc.AddUser(ctx, models.User{Name: "Alice", Email: "alice@example.com", MobileDeviceToken: "tok"})
	require.NoError(t, err)

	withPref, err := svc.AddAlertPreference(ctx, user.ID, models.AlertPreference{
		Destination: "LIS",
		MaxPrice:    decimal.RequireFromString("149.99"),
		Currency:    "EUR",
	})
	require.NoError(t, err)
	require.Len(t, withPref.AlertPreferences, 1)

	all, err := svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "tok", all[0].MobileDeviceToken)
	assert.True(t, decimal.RequireFromString("149.99").Equal(all[0].AlertPreferences[0].MaxPrice))

	_, err = svc.GetUser(ctx, "not-an-object-id")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	_, err = svc.GetUser(ctx, user.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
