// Package domain models earthquake records and the pure computations the map
// view is built from.
//
// # Data Source
//
// Records originate from a USGS-style CSV export (state, magnitude, data type,
// longitude, latitude, date). One of the generation algorithms in package
// algorithm reduces that CSV to the JSON dataset the map view loads:
//
//	[{"state":"California","magnitude":5.2,"longitude":-118,"latitude":34,"year":1994}, ...]
//
// Records carry no identifier. Two records with identical fields are distinct
// events and are counted and drawn independently.
//
// # Filtering
//
// A record passes [Filter] when all of these hold:
//
//	year      inside the year range, both ends inclusive
//	magnitude inside at least one selected bucket (union); no buckets selects nothing
//	state     equal to the location query after trimming and case folding (when set)
//
// Buckets are half-open [min, max) unless closed at the top. The default set
// mirrors the map legend:
//
//	2_3 [2,3)  3_4 [3,4)  4_5 [4,5)  5_6 [5,6)  6_7 [6,7)  7_10 [7,10]
//
// # Ranking
//
// [Rank] groups the filtered records by state and returns the five least and
// five most represented states. States with no records are absent, not zero.
// Ties keep discovery order.
//
// # Marker Colors
//
// Marker categories are a pure function of magnitude, see [CategoryFor]:
//
//	[2,3) low1 blue   [3,4) low2 purple   [4,5) mid1 green
//	[5,6) mid2 yellow [6,7) high1 orange  [7,∞) high2 red
package domain
