package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const courierCollection = "courier_devices"

// CourierRepository stores courier device credentials.
type CourierRepository struct {
	coll *mongo.Collection
}

func NewCourierRepository(db *mongo.Database) *CourierRepository {
	return &CourierRepository{coll: db.Collection(courierCollection)}
}

var _ ports.CourierRepository = (*CourierRepository)(nil)

type mongoCourier struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	CourierID  string             `bson:"courier_id"`
	SecretHash string             `bson:"secret_hash"`
	Active     bool               `bson:"active"`
	CreatedAt  int64              `bson:"created_at"`
	UpdatedAt  int64              `bson:"updated_at"`
}

func (r *CourierRepository) Create(ctx context.Context, c *domain.CourierCredential) (*domain.CourierCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoCourier{
		CourierID:  c.CourierID,
		SecretHash: c.SecretHash,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt.Unix(),
		UpdatedAt:  c.UpdatedAt.Unix(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrCourierExists
		}
		return nil, fmt.Errorf("insert courier: %w", err)
	}

	created := *c
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *CourierRepository) FindByCourierID(ctx context.Context, courierID string) (*domain.CourierCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mc mongoCourier
	if err := r.coll.FindOne(ctx, bson.M{"courier_id": courierID}).Decode(&mc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCourierNotFound
		}
		return nil, fmt.Errorf("find courier: %w", err)
	}

	return &domain.CourierCredential{
		ID:         mc.ID.Hex(),
		CourierID:  mc.CourierID,
		SecretHash: mc.SecretHash,
		Active:     mc.Active,
		CreatedAt:  unixToTime(mc.CreatedAt),
		UpdatedAt:  unixToTime(mc.UpdatedAt),
	}, nil
}

// EnsureIndexes makes courier_id unique so duplicate registrations fail.
func (r *CourierRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "courier_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure courier indexes: %w", err)
	}
	return nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
