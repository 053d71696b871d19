package trajectory

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink 写出到MongoDB，每个控制周期一个文档
type MongoSink struct {
	URI string
	DB  string
	Col string
}

func (s MongoSink) Name() string {
	return fmt.Sprintf("mongo %s.%s", s.DB, s.Col)
}

// Documents 转换为MongoDB文档
func Documents(l *Log) []any {
	docs := make([]any, len(l.Records))
	for i, r := range l.Records {
		others := bson.M{}
		for id, o := range r.Others {
			others[id] = bson.M{"x": o.X, "y": o.Y, "vx": o.VX}
		}
		docs[i] = bson.D{
			{Key: "run_id", Value: l.RunID.String()},
			{Key: "scenario", Value: l.Scenario},
			{Key: "step", Value: r.Step},
			{Key: "t", Value: r.T},
			{Key: "ego", Value: bson.M{"x": r.EgoX, "y": r.EgoY, "vx": r.EgoVX, "ax": r.EgoAX, "ay": r.EgoAY}},
			{Key: "mode", Value: r.Mode},
			{Key: "status", Value: r.Status},
			{Key: "others", Value: others},
		}
	}
	return docs
}

func (s MongoSink) Write(ctx context.Context, l *Log) error {
	if len(l.Records) == 0 {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.URI))
	if err != nil {
		return fmt.Errorf("trajectory: connect mongo: %w", err)
	}
	defer client.Disconnect(context.Background())

	col := client.Database(s.DB).Collection(s.Col)
	if _, err := col.InsertMany(ctx, Documents(l), options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("trajectory: insert mongo: %w", err)
	}
	return nil
}
