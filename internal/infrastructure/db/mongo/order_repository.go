package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const collectionOrders = "orders"

// OrderRepository reads order context from the order lifecycle collection.
// The collection is owned by another service; this repository never writes.
type OrderRepository struct {
	col *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection(collectionOrders)}
}

var _ ports.OrderContextProvider = (*OrderRepository)(nil)

type orderPoint struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type orderWindow struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

// orderDoc is the projection of an order document this service reads.
type orderDoc struct {
	OrderID        string       `bson:"order_id"`
	Status         string       `bson:"status"`
	Destination    *orderPoint  `bson:"destination,omitempty"`
	PromisedWindow *orderWindow `bson:"promised_window,omitempty"`
}

var orderProjection = bson.M{
	"_id":             0,
	"order_id":        1,
	"status":          1,
	"destination":     1,
	"promised_window": 1,
}

// OrderContext returns the lifecycle, destination and promised window of an
// order. The caller bounds the lookup through ctx.
func (r *OrderRepository) OrderContext(ctx context.Context, orderID string) (*domain.OrderContext, error) {
	var doc orderDoc
	err := r.col.FindOne(ctx,
		bson.M{"order_id": orderID},
		options.FindOne().SetProjection(orderProjection),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return toOrderContext(doc), nil
}

func toOrderContext(doc orderDoc) *domain.OrderContext {
	oc := &domain.OrderContext{
		OrderID:   doc.OrderID,
		Lifecycle: domain.OrderLifecycle(doc.Status),
	}
	if doc.Destination != nil {
		oc.Destination = &domain.Point{Lat: doc.Destination.Lat, Lng: doc.Destination.Lng}
	}
	if w := doc.PromisedWindow; w != nil && !w.End.IsZero() {
		oc.PromisedWindow = &domain.TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
	}
	return oc
}

// Ping checks connectivity to the order store.
func (r *OrderRepository) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}
