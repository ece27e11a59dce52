package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "farewatch/pkg/errors"
	"farewatch/pkg/metrics"
	"farewatch/pkg/models"
)

type userDocument struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty"`
	Name              string               `bson:"name"`
	Email             string               `bson:"email"`
	MobileDeviceToken string               `bson:"mobileDeviceToken,omitempty"`
	AlertPreferences  []preferenceDocument `bson:"alertPreferences"`
}

type preferenceDocument struct {
	PreferenceID string               `bson:"preferenceId"`
	Destination  string               `bson:"destination"`
	MaxPrice     primitive.Decimal128 `bson:"maxPrice"`
	Currency     string               `bson:"currency"`
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database, collection string) *MongoRepository {
	return &MongoRepository{collection: db.Collection(collection)}
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) error {
	start := time.Now()

	doc, err := toDocument(*user)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	_, err = r.collection.InsertOne(ctx, doc)
	observe("insert", err, start)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrConflict.WithMessage("user %s already exists", doc.ID.Hex()).WithCause(err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = doc.ID.Hex()
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var doc userDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observe("find_one", nil, start)
		return nil, userNotFound(id)
	}
	observe("find_one", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	user := fromDocument(doc)
	return &user, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]models.User, error) {
	start := time.Now()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		observe("find", err, start)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	err = cursor.All(ctx, &docs)
	observe("find", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out, nil
}

func (r *MongoRepository) Replace(ctx context.Context, user models.User) error {
	doc, err := toDocument(user)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		return apperrors.ErrValidation.WithMessage("user id is required")
	}

	start := time.Now()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	observe("replace", err, start)
	if err != nil {
		return fmt.Errorf("failed to replace user %s: %w", user.ID, err)
	}
	if result.MatchedCount == 0 {
		return userNotFound(user.ID)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var doc userDocument
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observe("delete", nil, start)
		return nil, userNotFound(id)
	}
	observe("delete", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user %s: %w", id, err)
	}

	user := fromDocument(doc)
	return &user, nil
}

func observe(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveDatabaseQuery("mongodb", operation, status, time.Since(start))
}

// parseID treats a malformed id like a missing one; no stored user can have it.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, userNotFound(id)
	}
	return oid, nil
}

func userNotFound(id string) error {
	return apperrors.ErrNotFound.WithMessage("user with ID %s was not found", id)
}

func toDocument(u models.User) (userDocument, error) {
	doc := userDocument{
		Name:              u.Name,
		Email:             u.Email,
		MobileDeviceToken: u.MobileDeviceToken,
		AlertPreferences:  make([]preferenceDocument, 0, len(u.AlertPreferences)),
	}

	if u.ID != "" {
		oid, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			return userDocument{}, apperrors.ErrValidation.WithMessage("invalid user id %q", u.ID)
		}
		doc.ID = oid
	}

	for _, p := range u.AlertPreferences {
		price, err := primitive.ParseDecimal128(p.MaxPrice.String())
		if err != nil {
			return userDocument{}, apperrors.ErrValidation.WithMessage("invalid maxPrice %s", p.MaxPrice)
		}
		doc.AlertPreferences = append(doc.AlertPreferences, preferenceDocument{
			PreferenceID: p.PreferenceID,
			Destination:  p.Destination,
			MaxPrice:     price,
			Currency:     p.Currency,
		})
	}

	return doc, nil
}

func fromDocument(doc userDocument) models.User {
	u := models.User{
		ID:                doc.ID.Hex(),
		Name:              doc.Name,
		Email:             doc.Email,
		MobileDeviceToken: doc.MobileDeviceToken,
		AlertPreferences:  make([]models.AlertPreference, 0, len(doc.AlertPreferences)),
	}
	for _, p := range doc.AlertPreferences {
		// Decimal128 strings are always valid decimals.
		price, _ := decimal.NewFromString(p.MaxPrice.String())
		u.AlertPreferences = append(u.AlertPreferences, models.AlertPreference{
			PreferenceID: p.PreferenceID,
			Destination:  p.Destination,
			MaxPrice:     price,
			Currency:     p.Currency,
		})
	}
	return u
}
