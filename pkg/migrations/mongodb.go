package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureUsersCollection creates the indexes the user store relies on.
// CreateMany is a no-op for indexes that already exist with the same keys and options.
func EnsureUsersCollection(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email"),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_users_name"),
		},
		{
			Keys:    bson.D{{Key: "alertPreferences.destination", Value: 1}},
			Options: options.Index().SetName("idx_users_preference_destination"),
		},
		{
			Keys: bson.D{{Key: "alertPreferences.preferenceId", Value: 1}},
			Options: options.Index().
				SetName("idx_users_preference_id").
				SetSparse(true),
		},
	}

	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}
	return nil
}
