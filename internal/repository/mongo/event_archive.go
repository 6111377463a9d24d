package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/bundleshop/internal/config"
	"github.com/example/bundleshop/internal/datamodels/event"
)

// EventDocument 归档的事件文档，金额以字符串保存避免精度损失
type EventDocument struct {
	event.Event `bson:",inline"`
	TotalAmount string    `bson:"total_amount"`
	ArchivedAt  time.Time `bson:"archived_at"`
}

func toDocument(e event.Event, at time.Time) EventDocument {
	return EventDocument{
		Event:       e,
		TotalAmount: e.TotalAmount.StringFixed(2),
		ArchivedAt:  at,
	}
}

// EventArchive notify-worker 用来留存收到的订单事件
type EventArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewEventArchive(ctx context.Context, cfg *config.MongoConfig) (*EventArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	collection := client.Database(cfg.DB).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "order_no", Value: 1}, {Key: "occurred_at", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &EventArchive{client: client, collection: collection}, nil
}

// Save 按 event_id 去重，重复投递的消息直接忽略
func (a *EventArchive) Save(ctx context.Context, e event.Event) error {
	_, err := a.collection.InsertOne(ctx, toDocument(e, time.Now()))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByOrder 某个订单的全部事件，按发生时间排序
func (a *EventArchive) ListByOrder(ctx context.Context, orderNo string) ([]EventDocument, error) {
	cur, err := a.collection.Find(ctx,
		bson.M{"order_no": orderNo},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []EventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return docs, nil
}

func (a *EventArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
