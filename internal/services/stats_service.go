package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"beacon/internal/database"
	"beacon/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	// recentLimit caps the recent-record lists on stats responses.
	recentLimit = 10
	// dateBreakdownLimit caps the daily breakdown (most recent days first).
	dateBreakdownLimit = 30
)

// StatBucket is one row of a grouped breakdown, ordered for display.
type StatBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// StatsService runs the aggregation queries over the visits collection.
// All of its entry points sit behind the admin gate.
type StatsService struct {
	collection *mongo.Collection
}

// NewStatsService creates a new stats service
func NewStatsService(mongoDB *database.MongoDB) *StatsService {
	return &StatsService{
		collection: mongoDB.Collection(database.CollectionVisits),
	}
}

// visitMatch builds the plain-visit filter (eventType "visit" or absent),
// merged with any extra conditions.
func visitMatch(extra bson.M) bson.M {
	match := bson.M{"$or": []bson.M{
		{"eventType": models.EventTypeVisit},
		{"eventType": bson.M{"$exists": false}},
	}}
	for k, v := range extra {
		match[k] = v
	}
	return match
}

// eventMatch matches discrete (non-visit) events.
func eventMatch() bson.M {
	return bson.M{"eventType": bson.M{"$exists": true, "$ne": models.EventTypeVisit}}
}

// conversionMatch matches completed session conversions.
func conversionMatch() bson.M {
	return bson.M{"eventType": "conversion", "metadata.type": "session_started"}
}

// Global returns the full global stats view: summary counters, grouped
// breakdowns and recent record lists. The reads are independent, so they
// fan out concurrently.
func (s *StatsService) Global(ctx context.Context) (map[string]interface{}, error) {
	now := time.Now().UTC()
	today := models.CalendarDate(now)
	weekAgo := models.CalendarDate(now.AddDate(0, 0, -7))
	monthAgo := models.CalendarDate(now.AddDate(0, 0, -30))

	var (
		totalVisits    int64
		uniqueVisitors int
		visitsToday    int64
		visitsWeek     int64
		visitsMonth    int64
		conversions    int64

		bySite, byDate, byDevice, byCountry, byTimezone, byConversionType []StatBucket

		recentVisits, recentEvents []models.Visit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		totalVisits, err = s.collection.CountDocuments(gctx, visitMatch(nil))
		return err
	})
	g.Go(func() error {
		ips, err := s.collection.Distinct(gctx, "ip", visitMatch(nil))
		uniqueVisitors = len(ips)
		return err
	})
	g.Go(func() (err error) {
		visitsToday, err = s.collection.CountDocuments(gctx, visitMatch(bson.M{"visitDate": today}))
		return err
	})
	g.Go(func() (err error) {
		visitsWeek, err = s.collection.CountDocuments(gctx, visitMatch(bson.M{"visitDate": bson.M{"$gte": weekAgo}}))
		return err
	})
	g.Go(func() (err error) {
		visitsMonth, err = s.collection.CountDocuments(gctx, visitMatch(bson.M{"visitDate": bson.M{"$gte": monthAgo}}))
		return err
	})
	g.Go(func() (err error) {
		conversions, err = s.collection.CountDocuments(gctx, conversionMatch())
		return err
	})

	g.Go(func() (err error) {
		bySite, err = s.groupCount(gctx, visitMatch(nil), bson.M{"$ifNull": bson.A{"$site", "unknown"}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byDate, err = s.groupCount(gctx, visitMatch(nil), "$visitDate", true, dateBreakdownLimit)
		return err
	})
	g.Go(func() (err error) {
		byDevice, err = s.groupCount(gctx, visitMatch(nil), bson.M{"$ifNull": bson.A{"$metadata.deviceType", "unknown"}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byCountry, err = s.groupCount(gctx, visitMatch(nil), bson.M{"$ifNull": bson.A{"$metadata.country", CountryUnknown}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byTimezone, err = s.groupCount(gctx, visitMatch(nil), bson.M{"$ifNull": bson.A{"$metadata.timezone", "unknown"}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byConversionType, err = s.groupCount(gctx, bson.M{"eventType": "conversion"}, bson.M{"$ifNull": bson.A{"$metadata.type", "unknown"}}, false, 0)
		return err
	})

	g.Go(func() (err error) {
		recentVisits, err = s.recent(gctx, visitMatch(nil), recentLimit)
		return err
	})
	g.Go(func() (err error) {
		recentEvents, err = s.recent(gctx, eventMatch(), recentLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return map[string]interface{}{
		"summary": map[string]interface{}{
			"total_visits":        totalVisits,
			"unique_visitors":     uniqueVisitors,
			"visits_today":        visitsToday,
			"visits_last_7_days":  visitsWeek,
			"visits_last_30_days": visitsMonth,
			"conversions":         conversions,
			"conversion_rate":     formatPercent(conversions, totalVisits),
		},
		"by_site":             bySite,
		"by_date":             byDate,
		"by_device":           byDevice,
		"by_country":          byCountry,
		"by_timezone":         byTimezone,
		"conversions_by_type": byConversionType,
		"recent_visits":       redactAll(recentVisits),
		"recent_events":       redactAll(recentEvents),
	}, nil
}

// Site returns the global summary shape filtered to one site, plus a
// per-page breakdown.
func (s *StatsService) Site(ctx context.Context, site string) (map[string]interface{}, error) {
	now := time.Now().UTC()
	today := models.CalendarDate(now)
	weekAgo := models.CalendarDate(now.AddDate(0, 0, -7))
	monthAgo := models.CalendarDate(now.AddDate(0, 0, -30))

	siteVisits := func(extra bson.M) bson.M {
		match := visitMatch(extra)
		match["site"] = site
		return match
	}

	var (
		totalVisits    int64
		uniqueVisitors int
		visitsToday    int64
		visitsWeek     int64
		visitsMonth    int64
		conversions    int64
		byPage         []StatBucket
		byDate         []StatBucket
		recentVisits   []models.Visit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		totalVisits, err = s.collection.CountDocuments(gctx, siteVisits(nil))
		return err
	})
	g.Go(func() error {
		ips, err := s.collection.Distinct(gctx, "ip", siteVisits(nil))
		uniqueVisitors = len(ips)
		return err
	})
	g.Go(func() (err error) {
		visitsToday, err = s.collection.CountDocuments(gctx, siteVisits(bson.M{"visitDate": today}))
		return err
	})
	g.Go(func() (err error) {
		visitsWeek, err = s.collection.CountDocuments(gctx, siteVisits(bson.M{"visitDate": bson.M{"$gte": weekAgo}}))
		return err
	})
	g.Go(func() (err error) {
		visitsMonth, err = s.collection.CountDocuments(gctx, siteVisits(bson.M{"visitDate": bson.M{"$gte": monthAgo}}))
		return err
	})
	g.Go(func() (err error) {
		match := conversionMatch()
		match["site"] = site
		conversions, err = s.collection.CountDocuments(gctx, match)
		return err
	})
	g.Go(func() (err error) {
		byPage, err = s.groupCount(gctx, siteVisits(nil), bson.M{"$ifNull": bson.A{"$page", "/"}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byDate, err = s.groupCount(gctx, siteVisits(nil), "$visitDate", true, dateBreakdownLimit)
		return err
	})
	g.Go(func() (err error) {
		match := visitMatch(nil)
		match["site"] = site
		recentVisits, err = s.recent(gctx, match, recentLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate site stats: %w", err)
	}

	return map[string]interface{}{
		"site": site,
		"summary": map[string]interface{}{
			"total_visits":        totalVisits,
			"unique_visitors":     uniqueVisitors,
			"visits_today":        visitsToday,
			"visits_last_7_days":  visitsWeek,
			"visits_last_30_days": visitsMonth,
			"conversions":         conversions,
			"conversion_rate":     formatPercent(conversions, totalVisits),
		},
		"by_page":       byPage,
		"by_date":       byDate,
		"recent_visits": redactAll(recentVisits),
	}, nil
}

// Conversations summarizes records that carry an attached transcript.
func (s *StatsService) Conversations(ctx context.Context) (map[string]interface{}, error) {
	convMatch := bson.M{"messages.0": bson.M{"$exists": true}}

	var (
		totalConversations int64
		totalVisits        int64
		avgMessages        float64
		avgDuration        float64
		byScenario         []StatBucket
		byVoice            []StatBucket
		recentConvs        []models.Visit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		totalConversations, err = s.collection.CountDocuments(gctx, convMatch)
		return err
	})
	g.Go(func() (err error) {
		totalVisits, err = s.collection.CountDocuments(gctx, visitMatch(nil))
		return err
	})
	g.Go(func() error {
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: convMatch}},
			{{Key: "$project", Value: bson.M{
				"messageCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}},
				"duration":     "$conversationMeta.duration",
			}}},
			{{Key: "$group", Value: bson.M{
				"_id":          nil,
				"avg_messages": bson.M{"$avg": "$messageCount"},
				"avg_duration": bson.M{"$avg": "$duration"},
			}}},
		}
		cursor, err := s.collection.Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		var results []bson.M
		if err := cursor.All(gctx, &results); err != nil {
			return err
		}
		if len(results) > 0 {
			avgMessages = extractFloat64(results[0], "avg_messages")
			avgDuration = extractFloat64(results[0], "avg_duration")
		}
		return nil
	})
	g.Go(func() (err error) {
		byScenario, err = s.groupCount(gctx, convMatch, bson.M{"$ifNull": bson.A{"$conversationMeta.scenario", "unknown"}}, false, 0)
		return err
	})
	g.Go(func() (err error) {
		byVoice, err = s.groupCount(gctx, convMatch, bson.M{"$ifNull": bson.A{"$conversationMeta.voice", "unknown"}}, false, 0)
		return err
	})
	g.Go(func() error {
		// Most recently updated first, falling back to creation time for
		// records attached before conversationUpdatedAt existed.
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: convMatch}},
			{{Key: "$addFields", Value: bson.M{
				"lastActivity": bson.M{"$ifNull": bson.A{"$conversationUpdatedAt", "$timestamp"}},
			}}},
			{{Key: "$sort", Value: bson.M{"lastActivity": -1}}},
			{{Key: "$limit", Value: recentLimit}},
		}
		cursor, err := s.collection.Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		return cursor.All(gctx, &recentConvs)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate conversation stats: %w", err)
	}

	return map[string]interface{}{
		"total_conversations":  totalConversations,
		"conversion_rate":      formatPercent(totalConversations, totalVisits),
		"avg_message_count":    round2(avgMessages),
		"avg_duration_seconds": round2(avgDuration),
		"by_scenario":          byScenario,
		"by_voice":             byVoice,
		"recent":               redactAll(recentConvs),
	}, nil
}

// Export returns every record matching the export type, newest first, with
// addresses already redacted. typ is one of "all", "visits", "events".
func (s *StatsService) Export(ctx context.Context, typ string) ([]models.Visit, error) {
	var filter bson.M
	switch typ {
	case "visits":
		filter = visitMatch(nil)
	case "events":
		filter = eventMatch()
	default:
		filter = bson.M{}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to export records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.Visit
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode export records: %w", err)
	}

	return redactAll(records), nil
}

// groupCount runs a $match/$group/$sort pipeline and flattens the result into
// display-ordered buckets. sortByKey sorts descending on the group key (used
// for date breakdowns, where lexicographic equals chronological); otherwise
// buckets sort by count descending.
func (s *StatsService) groupCount(ctx context.Context, match bson.M, keyExpr interface{}, sortByKey bool, limit int64) ([]StatBucket, error) {
	sortDoc := bson.M{"count": -1}
	if sortByKey {
		sortDoc = bson.M{"_id": -1}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": keyExpr, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: sortDoc}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	buckets := make([]StatBucket, 0, len(results))
	for _, result := range results {
		buckets = append(buckets, StatBucket{
			Key:   keyString(result["_id"]),
			Count: extractInt64(result, "count"),
		})
	}
	return buckets, nil
}

// recent fetches the newest matching records by timestamp.
func (s *StatsService) recent(ctx context.Context, filter bson.M, limit int64) ([]models.Visit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var visits []models.Visit
	if err := cursor.All(ctx, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// redactAll maps records to their redacted views.
func redactAll(visits []models.Visit) []models.Visit {
	redacted := make([]models.Visit, 0, len(visits))
	for _, v := range visits {
		redacted = append(redacted, v.Redacted())
	}
	return redacted
}

// formatPercent renders numerator/denominator as "X.XX%". A zero denominator
// renders as "0%" rather than erroring.
func formatPercent(numerator, denominator int64) string {
	if denominator == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(numerator)/float64(denominator)*100)
}

// round2 rounds to two decimal places for display.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// extractInt64 safely extracts an int64 value from a bson.M result
func extractInt64(result bson.M, key string) int64 {
	switch count := result[key].(type) {
	case int32:
		return int64(count)
	case int64:
		return count
	case float64:
		return int64(count)
	}
	return 0
}

// extractFloat64 safely extracts a float64 value from a bson.M result
func extractFloat64(result bson.M, key string) float64 {
	switch v := result[key].(type) {
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// keyString normalizes a group key to a display string; non-string keys can
// appear when clients send unexpected metadata value types.
func keyString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%v", v)
}
