// Package domain models reservoir usable-volume time series and the indicators
// derived from them.
//
// # Data Source
//
// Volumes come from the AGHyRE diffusion webservice operated by the French
// waterways authority. Each reservoir is published as a "rubrique": an opaque
// numeric code (treated as a string everywhere) whose observations are the
// daily usable volume ("VMJ utile") of the reservoir. Responses use the SANDRE
// hydrometry XML exchange format; decoding lives in the sandre adapter.
//
// # Units and Timesteps
//
// Rubriques are grouped in catalog files by unit. Some publish cubic metres,
// others millions of cubic metres (Mm3). Everything downstream of [Normalize]
// is expressed in Mm3:
//
//	m3 catalog:  scale 1e-6   (2 500 000 m3 -> 2.5 Mm3)
//	Mm3 catalog: scale 1
//
// Native timesteps are irregular (several readings a day for some stations,
// one a month for others). Normalization reconciles them in two stages:
//
//	1. daily mean of all readings of the same calendar day
//	2. first available daily value of each calendar month (month-start snapshot)
//
// The second stage picks a value rather than averaging again so that a series
// is never smoothed twice. Both stages must stay exactly as described for the
// indicators to remain comparable with historical bulletins.
//
// # Missing Values
//
// A [Table] stores missing values as NaN. Indicators that cannot be computed
// (no reference, no capacity, missing month) are nil pointers in a
// [SynthesisRow]; they are data, not errors.
//
// # Indicators
//
//	Rolling reference: mean of the same calendar month over the 10 years ending
//	                   with the reference year, defined with at least 9 values.
//	Fill ratio:        volume / maximum usable capacity.
//	Status:            low < 0.8*ref <= medium < ref <= high
//	Trend:             fill ratio delta with the previous month,
//	                   down <= -0.03 < stable < 0.03 <= up
package domain
