package playback

import (
	"testing"

	"github.com/ghalamif/EdgeTap/internal/domain"
)

func TestSummarizeFlagsAnomaliesAndAggregates(t *testing.T) {
	recs := []domain.Record{
		{"timestamp": 1.0, "temp": 30.0, "pressure": 1.0, "vibration": 0.1, "anomaly_score": 0.2},
		{"timestamp": 2.0, "temp": 34.0, "pressure": 3.0, "anomaly_score": 0.9},
		{"timestamp": 3.0, "temp": 32.0, "vibration": "n/a"},
	}

	s := Summarize(recs, DefaultAnomalyThreshold)

	if s.Records != 3 {
		t.Fatalf("expected 3 records, got %d", s.Records)
	}
	if len(s.Anomalies) != 1 || s.Anomalies[0].Index != 1 || s.Anomalies[0].Timestamp != 2.0 {
		t.Fatalf("unexpected anomalies: %+v", s.Anomalies)
	}

	temp := s.Channels["temp"]
	if temp.Count != 3 || temp.Min != 30 || temp.Max != 34 || temp.Mean != 32 {
		t.Fatalf("unexpected temp stats: %+v", temp)
	}
	if p := s.Channels["pressure"]; p.Count != 2 || p.Mean != 2 {
		t.Fatalf("unexpected pressure stats: %+v", p)
	}
	if v := s.Channels["vibration"]; v.Count != 1 || v.Max != 0.1 {
		t.Fatalf("non-numeric vibration must be ignored: %+v", v)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, DefaultAnomalyThreshold)
	if s.Records != 0 || len(s.Anomalies) != 0 || len(s.Channels) != 0 {
		t.Fatalf("unexpected summary for no records: %+v", s)
	}
}
