package domain

import (
	"fmt"
	"slices"
)

// RankingSize is the number of entries kept in each ranking table.
const RankingSize = 5

// RankingEntry is the number of filtered records attributed to one state.
type RankingEntry struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// Rankings holds the least and most represented states of a filtered set.
type Rankings struct {
	TopLow  []RankingEntry `json:"top_low"`
	TopHigh []RankingEntry `json:"top_high"`
}

// CountByState groups records by state in discovery order.
func CountByState(records []EarthquakeRecord) []RankingEntry {
	index := make(map[string]int)
	var entries []RankingEntry
	for _, rec := range records {
		i, ok := index[rec.State]
		if !ok {
			i = len(entries)
			index[rec.State] = i
			entries = append(entries, RankingEntry{Region: rec.State})
		}
		entries[i].Count++
	}
	return entries
}

// Rank returns up to RankingSize states with the fewest records (TopLow) and
// the most records (TopHigh). Ties keep discovery order.
func Rank(records []EarthquakeRecord) Rankings {
	counts := CountByState(records)

	low := slices.Clone(counts)
	slices.SortStableFunc(low, func(a, b RankingEntry) int { return a.Count - b.Count })

	high := slices.Clone(counts)
	slices.SortStableFunc(high, func(a, b RankingEntry) int { return b.Count - a.Count })

	return Rankings{
		TopLow:  head(low, RankingSize),
		TopHigh: head(high, RankingSize),
	}
}

func head(entries []RankingEntry, n int) []RankingEntry {
	if len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		return []RankingEntry{}
	}
	return entries
}

// CountLabel renders the record counter caption.
func CountLabel(n int) string {
	return fmt.Sprintf("Number of Earthquakes: %d", n)
}
