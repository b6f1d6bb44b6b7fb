package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type journeyHeader struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Fingerprint string             `bson:"fingerprint"`

	OriginCode      string `bson:"origincode"`
	OriginName      string `bson:"originname"`
	DestinationCode string `bson:"destinationcode"`
	DestinationName string `bson:"destinationname"`

	DepartureTime time.Time `bson:"departuretime"`
	ArrivalTime   time.Time `bson:"arrivaltime"`
	Duration      int64     `bson:"duration"`

	Changes int `bson:"changes"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}

type journeyDocument struct {
	Header journeyHeader  `bson:",inline"`
	Fares  []fareDocument `bson:"fares"`
}

// One row of a $unwind over the fares array
type unwoundFareDocument struct {
	Header journeyHeader `bson:",inline"`
	Fare   fareDocument  `bson:"fares"`
}

type fareDocument struct {
	ID primitive.ObjectID `bson:"id"`

	Price primitive.Decimal128 `bson:"price"`

	CarrierCode string `bson:"carriercode"`
	CarrierName string `bson:"carriername"`

	Type        string `bson:"type"`
	Flexibility string `bson:"flexibility"`
	Permission  string `bson:"permission"`

	Timestamp time.Time `bson:"timestamp"`
}

func newJourneyHeader(journey *ctdf.Journey, now time.Time) journeyHeader {
	return journeyHeader{
		Fingerprint:          journey.Fingerprint,
		OriginCode:           journey.OriginCode,
		OriginName:           journey.OriginName,
		DestinationCode:      journey.DestinationCode,
		DestinationName:      journey.DestinationName,
		DepartureTime:        journey.DepartureTime,
		ArrivalTime:          journey.ArrivalTime,
		Duration:             int64(journey.Duration),
		Changes:              journey.Changes,
		CreationDateTime:     now,
		ModificationDateTime: now,
	}
}

func (h journeyHeader) toJourney() *ctdf.Journey {
	return &ctdf.Journey{
		ID:              h.ID.Hex(),
		Fingerprint:     h.Fingerprint,
		OriginCode:      h.OriginCode,
		OriginName:      h.OriginName,
		DestinationCode: h.DestinationCode,
		DestinationName: h.DestinationName,
		DepartureTime:   h.DepartureTime.UTC(),
		ArrivalTime:     h.ArrivalTime.UTC(),
		Duration:        ctdf.Duration(h.Duration),
		Changes:         h.Changes,
	}
}

func (d journeyDocument) toJourney() (*ctdf.Journey, error) {
	journey := d.Header.toJourney()

	for _, fareDoc := range d.Fares {
		fare, err := fareDoc.toFare(journey.ID)
		if err != nil {
			return nil, err
		}
		journey.Fares = append(journey.Fares, fare)
	}
	journey.SortFares()

	return journey, nil
}

func newFareDocument(fare *ctdf.Fare) (fareDocument, error) {
	price, err := primitive.ParseDecimal128(fare.Price.String())
	if err != nil {
		return fareDocument{}, fmt.Errorf("encoding price %s: %w", fare.Price, err)
	}

	return fareDocument{
		ID:          primitive.NewObjectID(),
		Price:       price,
		CarrierCode: fare.CarrierCode,
		CarrierName: fare.CarrierName,
		Type:        fare.Type,
		Flexibility: fare.Flexibility,
		Permission:  fare.Permission,
		Timestamp:   fare.Timestamp,
	}, nil
}

func (f fareDocument) toFare(journeyID string) (*ctdf.Fare, error) {
	price, err := decimal.NewFromString(f.Price.String())
	if err != nil {
		return nil, fmt.Errorf("decoding price %s: %w", f.Price, err)
	}

	return &ctdf.Fare{
		ID:          f.ID.Hex(),
		JourneyRef:  journeyID,
		Price:       price,
		CarrierCode: f.CarrierCode,
		CarrierName: f.CarrierName,
		Type:        f.Type,
		Flexibility: f.Flexibility,
		Permission:  f.Permission,
		Timestamp:   f.Timestamp.Local(),
	}, nil
}

// MongoStore keeps each journey as one document with its fares embedded, so
// every write touches a single document and is atomic.
type MongoStore struct {
	Collection *mongo.Collection

	now func() time.Time
}

func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{
		Collection: collection,
		now:        time.Now,
	}
}

func (s *MongoStore) FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error) {
	var header journeyHeader

	err := s.Collection.FindOne(
		ctx,
		bson.M{"fingerprint": fingerprint},
		options.FindOne().SetProjection(bson.M{"fares": 0}),
	).Decode(&header)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return header.toJourney(), nil
}

func (s *MongoStore) ListFaresForJourney(ctx context.Context, journeyID string) ([]*ctdf.Fare, error) {
	journey, err := s.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	return journey.Fares, nil
}

func (s *MongoStore) CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error) {
	fareDoc, err := newFareDocument(fare)
	if err != nil {
		return "", "", err
	}

	document := journeyDocument{
		Header: newJourneyHeader(journey, s.now()),
		Fares:  []fareDocument{fareDoc},
	}
	document.Header.ID = primitive.NewObjectID()

	_, err = s.Collection.InsertOne(ctx, document)
	if mongo.IsDuplicateKeyError(err) {
		return "", "", ctdf.ErrDuplicateFingerprint
	} else if err != nil {
		return "", "", err
	}

	return document.Header.ID.Hex(), fareDoc.ID.Hex(), nil
}

func (s *MongoStore) AppendFare(ctx context.Context, journeyID string, fare *ctdf.Fare) (string, error) {
	objectID, err := primitive.ObjectIDFromHex(journeyID)
	if err != nil {
		return "", ctdf.ErrNotFound
	}

	fareDoc, err := newFareDocument(fare)
	if err != nil {
		return "", err
	}

	result, err := s.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{
		"$push": bson.M{"fares": fareDoc},
		"$set":  bson.M{"modificationdatetime": s.now()},
	})
	if err != nil {
		return "", err
	}
	if result.MatchedCount == 0 {
		return "", ctdf.ErrNotFound
	}

	return fareDoc.ID.Hex(), nil
}

func (s *MongoStore) GetJourney(ctx context.Context, id string) (*ctdf.Journey, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ctdf.ErrNotFound
	}

	var document journeyDocument
	err = s.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ctdf.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return document.toJourney()
}

func (s *MongoStore) QueryJourneys(ctx context.Context, filter JourneyFilter) ([]*ctdf.Journey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "departuretime", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.Collection.Find(ctx, journeyMatch(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	journeys := []*ctdf.Journey{}
	for cursor.Next(ctx) {
		var document journeyDocument
		if err := cursor.Decode(&document); err != nil {
			return nil, err
		}

		journey, err := document.toJourney()
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, journey)
	}

	return journeys, cursor.Err()
}

func (s *MongoStore) QueryFares(ctx context.Context, filter FareFilter) ([]*ctdf.Fare, error) {
	pipeline, ok := farePipeline(filter)
	if !ok {
		return []*ctdf.Fare{}, nil
	}

	return s.aggregateFares(ctx, pipeline)
}

func (s *MongoStore) GetFare(ctx context.Context, id string) (*ctdf.Fare, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ctdf.ErrNotFound
	}

	fares, err := s.aggregateFares(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"fares.id": objectID}}},
		{{Key: "$unwind", Value: "$fares"}},
		{{Key: "$match", Value: bson.M{"fares.id": objectID}}},
	})
	if err != nil {
		return nil, err
	}
	if len(fares) == 0 {
		return nil, ctdf.ErrNotFound
	}

	return fares[0], nil
}

func (s *MongoStore) aggregateFares(ctx context.Context, pipeline mongo.Pipeline) ([]*ctdf.Fare, error) {
	cursor, err := s.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	fares := []*ctdf.Fare{}
	for cursor.Next(ctx) {
		var document unwoundFareDocument
		if err := cursor.Decode(&document); err != nil {
			return nil, err
		}

		journey := document.Header.toJourney()
		fare, err := document.Fare.toFare(journey.ID)
		if err != nil {
			return nil, err
		}
		fare.Journey = journey

		fares = append(fares, fare)
	}

	return fares, cursor.Err()
}

func journeyMatch(filter JourneyFilter) bson.M {
	match := bson.M{}

	if filter.OriginCode != "" {
		match["origincode"] = filter.OriginCode
	}
	if filter.DestinationCode != "" {
		match["destinationcode"] = filter.DestinationCode
	}
	if filter.Changes != nil {
		match["changes"] = *filter.Changes
	}
	if !filter.Date.IsZero() {
		start, end := filter.dayBounds()
		match["departuretime"] = bson.M{"$gte": start, "$lt": end}
	}

	return match
}

// farePipeline reports false when the filter cannot match anything
func farePipeline(filter FareFilter) (mongo.Pipeline, bool) {
	match := journeyMatch(filter.JourneyFilter)
	if filter.JourneyID != "" {
		objectID, err := primitive.ObjectIDFromHex(filter.JourneyID)
		if err != nil {
			return nil, false
		}
		match["_id"] = objectID
	}

	fareMatch := bson.M{}
	if filter.Type != "" {
		fareMatch["fares.type"] = filter.Type
	}
	if filter.Flexibility != "" {
		fareMatch["fares.flexibility"] = filter.Flexibility
	}
	if filter.Permission != "" {
		fareMatch["fares.permission"] = filter.Permission
	}
	if filter.CarrierCode != "" {
		fareMatch["fares.carriercode"] = filter.CarrierCode
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$unwind", Value: "$fares"}},
	}
	if len(fareMatch) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: fareMatch}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{
		{Key: "departuretime", Value: 1},
		{Key: "fares.timestamp", Value: 1},
	}}})
	if filter.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: filter.Limit}})
	}

	return pipeline, true
}
