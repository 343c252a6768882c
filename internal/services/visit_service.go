package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beacon/internal/database"
	"beacon/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no record matches the given identifier.
var ErrNotFound = errors.New("record not found")

// VisitService handles beacon ingestion, same-day dedup and conversation
// attachment against the visits collection.
type VisitService struct {
	collection *mongo.Collection
	geo        *GeoService
}

// NewVisitService creates a new visit service. geo may be nil when
// geolocation enrichment is disabled.
func NewVisitService(mongoDB *database.MongoDB, geo *GeoService) *VisitService {
	return &VisitService{
		collection: mongoDB.Collection(database.CollectionVisits),
		geo:        geo,
	}
}

// Track records one beacon and returns the ingestion outcome.
//
// Plain visits are deduplicated per (ip, UTC day, site): the unique partial
// index makes exactly one concurrent insert win, and the upsert below resolves
// losers to the winning record in the same round trip. Discrete events are
// always inserted.
func (s *VisitService) Track(ctx context.Context, req models.TrackRequest, ip, userAgent string) (*models.TrackResponse, error) {
	req.Normalize()
	if ip == "" {
		ip = "unknown"
	}

	metadata := bson.M{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if userAgent != "" {
		if _, ok := metadata["userAgent"]; !ok {
			metadata["userAgent"] = userAgent
		}
	}
	s.enrichCountry(ctx, metadata, ip)

	now := time.Now().UTC()
	doc := models.Visit{
		ID:        primitive.NewObjectID(),
		IP:        ip,
		Timestamp: now,
		Site:      req.Site,
		Page:      req.Page,
		Referrer:  req.Referrer,
		EventType: req.EventType,
		Metadata:  metadata,
	}

	var storedID primitive.ObjectID
	var created bool

	if req.EventType == models.EventTypeVisit {
		doc.VisitDate = models.CalendarDate(now)

		// Atomic upsert-or-fetch: $setOnInsert only writes when no record
		// exists for the triple, and ReturnDocument(After) hands back the
		// winner either way. created is detected by comparing the
		// pre-assigned _id with the stored one.
		filter := bson.M{
			"ip":        doc.IP,
			"visitDate": doc.VisitDate,
			"site":      doc.Site,
			"eventType": models.EventTypeVisit,
		}
		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After)

		var stored models.Visit
		err := s.collection.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": doc}, opts).Decode(&stored)
		if err != nil {
			return nil, fmt.Errorf("failed to record visit: %w", err)
		}
		storedID = stored.ID
		created = stored.ID == doc.ID
	} else {
		// Discrete events carry no dedup key and every call creates a record.
		result, err := s.collection.InsertOne(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to record event: %w", err)
		}
		storedID = result.InsertedID.(primitive.ObjectID)
		created = true
	}

	// Running total is recomputed from storage on every call, not cached.
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	return &models.TrackResponse{
		Tracked:   true,
		Unique:    created,
		Total:     total,
		SessionID: storedID.Hex(),
	}, nil
}

// enrichCountry merges a derived country into the metadata map. A resolved
// country wins over a client-supplied one; an unknown result only fills the
// gap when the client sent nothing.
func (s *VisitService) enrichCountry(ctx context.Context, metadata bson.M, ip string) {
	if s.geo == nil {
		return
	}
	country := s.geo.Country(ctx, ip)
	if country != CountryUnknown {
		metadata["country"] = country
		return
	}
	if _, ok := metadata["country"]; !ok {
		metadata["country"] = CountryUnknown
	}
}

// SaveMessages replaces the conversation transcript on an existing record.
// It is an idempotent replace: repeated calls leave only the latest payload.
func (s *VisitService) SaveMessages(ctx context.Context, req models.SaveMessagesRequest) (int, error) {
	oid, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		return 0, ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"messages":              req.Messages,
		"conversationMeta":      req.Metadata,
		"conversationUpdatedAt": time.Now().UTC(),
	}}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return 0, fmt.Errorf("failed to save messages: %w", err)
	}
	if result.MatchedCount == 0 {
		return 0, ErrNotFound
	}

	return len(req.Messages), nil
}

// GetByID fetches a single record by its identifier.
func (s *VisitService) GetByID(ctx context.Context, id string) (*models.Visit, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var visit models.Visit
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&visit)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &visit, nil
}
