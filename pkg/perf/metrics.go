// Package perf derives ad performance metrics from raw counters.
package perf

import "math"

// Metrics is one ad creative's raw and derived performance numbers.
type Metrics struct {
	CreativeID  int     `json:"creative_id"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int     `json:"conversions"`

	CTR   float64 `json:"ctr"`
	CPC   float64 `json:"cpc"`
	CPA   float64 `json:"cpa"`
	Score float64 `json:"performance_score"`
}

// Derive computes CTR, CPC, CPA and the weighted performance score in place.
// The score is a fixed linear combination: click-through and cost efficiency
// at 30% each, conversions at 40%.
func (m *Metrics) Derive() {
	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions) * 100
	}
	if m.Clicks > 0 {
		m.CPC = m.Spend / float64(m.Clicks)
	}
	if m.Conversions > 0 {
		m.CPA = m.Spend / float64(m.Conversions)
	}
	m.Score = m.CTR*0.3 +
		(100-math.Min(m.CPC, 10)*10)*0.3 +
		float64(m.Conversions)*0.4
}
