package playback

import (
	"math"

	"github.com/ghalamif/EdgeTap/internal/domain"
)

const DefaultAnomalyThreshold = 0.5

// Channels summarized for the fault view.
var Channels = []string{"temp", "pressure", "vibration"}

type ChannelStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

type Anomaly struct {
	Index     int     `json:"index"`
	Score     float64 `json:"score"`
	Timestamp any     `json:"timestamp,omitempty"`
	Temp      any     `json:"temp,omitempty"`
}

type Summary struct {
	Records   int                     `json:"records"`
	Anomalies []Anomaly               `json:"anomalies"`
	Channels  map[string]ChannelStats `json:"channels"`
}

// Summarize flags records whose anomaly_score exceeds threshold and
// aggregates the temp, pressure and vibration channels. Records missing a
// field simply do not contribute to it.
func Summarize(recs []domain.Record, threshold float64) Summary {
	s := Summary{
		Records:   len(recs),
		Anomalies: []Anomaly{},
		Channels:  make(map[string]ChannelStats, len(Channels)),
	}

	sums := make(map[string]float64, len(Channels))
	for i, r := range recs {
		if score, ok := r.Float("anomaly_score"); ok && score > threshold {
			s.Anomalies = append(s.Anomalies, Anomaly{
				Index:     i,
				Score:     score,
				Timestamp: r["timestamp"],
				Temp:      r["temp"],
			})
		}
		for _, ch := range Channels {
			v, ok := r.Float(ch)
			if !ok || math.IsNaN(v) {
				continue
			}
			st := s.Channels[ch]
			if st.Count == 0 || v < st.Min {
				st.Min = v
			}
			if st.Count == 0 || v > st.Max {
				st.Max = v
			}
			st.Count++
			sums[ch] += v
			s.Channels[ch] = st
		}
	}
	for ch, st := range s.Channels {
		st.Mean = sums[ch] / float64(st.Count)
		s.Channels[ch] = st
	}
	return s
}
