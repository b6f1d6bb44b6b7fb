package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const FareJourneysCollection = "fare_journeys"

func createIndexes(ctx context.Context) error {
	return createFareJourneysIndexes(ctx)
}

func createFareJourneysIndexes(ctx context.Context) error {
	fareJourneysCollection := GetCollection(FareJourneysCollection)
	fareJourneysIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "origincode", Value: 1},
				{Key: "destinationcode", Value: 1},
				{Key: "departuretime", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "departuretime", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "fares.id", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := fareJourneysCollection.Indexes().CreateMany(ctx, fareJourneysIndex, opts)

	return err
}
