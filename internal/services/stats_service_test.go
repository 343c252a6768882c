package services

import (
	"strconv"
	"strings"
	"testing"

	"beacon/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		num, den int64
		want     string
	}{
		{0, 0, "0%"},
		{5, 0, "0%"},
		{0, 10, "0.00%"},
		{1, 3, "33.33%"},
		{3, 4, "75.00%"},
		{5, 5, "100.00%"},
	}

	for _, tc := range cases {
		if got := formatPercent(tc.num, tc.den); got != tc.want {
			t.Errorf("formatPercent(%d, %d) = %q, want %q", tc.num, tc.den, got, tc.want)
		}
	}
}

func TestFormatPercentStaysInRange(t *testing.T) {
	for num := int64(0); num <= 20; num++ {
		got := formatPercent(num, 20)
		val, err := strconv.ParseFloat(strings.TrimSuffix(got, "%"), 64)
		if err != nil {
			t.Fatalf("formatPercent(%d, 20) = %q, not parseable: %v", num, got, err)
		}
		if val < 0 || val > 100 {
			t.Errorf("formatPercent(%d, 20) = %q, outside [0, 100]", num, got)
		}
	}
}

func TestExtractInt64(t *testing.T) {
	result := bson.M{
		"i32": int32(7),
		"i64": int64(9),
		"f64": float64(11),
		"str": "nope",
	}

	if got := extractInt64(result, "i32"); got != 7 {
		t.Errorf("int32: got %d", got)
	}
	if got := extractInt64(result, "i64"); got != 9 {
		t.Errorf("int64: got %d", got)
	}
	if got := extractInt64(result, "f64"); got != 11 {
		t.Errorf("float64: got %d", got)
	}
	if got := extractInt64(result, "str"); got != 0 {
		t.Errorf("string: got %d, want 0", got)
	}
	if got := extractInt64(result, "missing"); got != 0 {
		t.Errorf("missing: got %d, want 0", got)
	}
}

func TestExtractFloat64(t *testing.T) {
	result := bson.M{"f": 2.5, "i": int32(4)}

	if got := extractFloat64(result, "f"); got != 2.5 {
		t.Errorf("float: got %f", got)
	}
	if got := extractFloat64(result, "i"); got != 4 {
		t.Errorf("int32: got %f", got)
	}
	if got := extractFloat64(result, "missing"); got != 0 {
		t.Errorf("missing: got %f, want 0", got)
	}
}

func TestKeyString(t *testing.T) {
	if got := keyString("desktop"); got != "desktop" {
		t.Errorf("string key: got %q", got)
	}
	if got := keyString(nil); got != "unknown" {
		t.Errorf("nil key: got %q", got)
	}
	if got := keyString(int32(3)); got != "3" {
		t.Errorf("numeric key: got %q", got)
	}
}

func TestRound2(t *testing.T) {
	if got := round2(3.456); got != 3.46 {
		t.Errorf("round2(3.456) = %v", got)
	}
	if got := round2(0); got != 0 {
		t.Errorf("round2(0) = %v", got)
	}
}

func TestRedactAll(t *testing.T) {
	visits := []models.Visit{
		{IP: "203.0.113.7"},
		{IP: "198.51.100.23"},
	}

	redacted := redactAll(visits)
	if len(redacted) != len(visits) {
		t.Fatalf("Expected %d records, got %d", len(visits), len(redacted))
	}
	for i, r := range redacted {
		if !strings.HasSuffix(r.IP, "...") {
			t.Errorf("record %d: IP %q not redacted", i, r.IP)
		}
		if r.IP == visits[i].IP {
			t.Errorf("record %d: raw IP survived redaction", i)
		}
	}
}

func TestVisitMatchIncludesAbsentEventType(t *testing.T) {
	match := visitMatch(nil)
	or, ok := match["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("Expected two $or branches, got %v", match["$or"])
	}

	extra := visitMatch(bson.M{"visitDate": "2026-03-14"})
	if extra["visitDate"] != "2026-03-14" {
		t.Errorf("Extra condition not merged: %v", extra)
	}
	// merging must not mutate the base filter shape
	if _, ok := visitMatch(nil)["visitDate"]; ok {
		t.Error("visitMatch leaked state between calls")
	}
}
