// Package domain models retail sales transactions across the four sales
// channels and holds the normalization logic for the messiest of them, the
// market stall spreadsheets.
//
// # Data Sources
//
// Point-of-sale, online (Stripe), and crypto transactions arrive through
// Postgres staging tables written by their collectors. Market stall sales are
// hand-filled spreadsheets uploaded to a shared drive folder, one file per
// stall per day.
//
// # Market Spreadsheet Conventions
//
// Filename format:
//
//	"<location>__<date>__<employee>.xlsx"  →  e.g. "Bangor, ME__2023-01-15__sarah.xlsx"
//	Exactly two "__" separators. A violating filename fails the whole file
//	(structural error); it never produces per-row errors.
//
// Date formats, tried in order (first match wins):
//
//	"2006-01-02"  →  2023-01-15
//	"06-01-02"    →  23-01-15
//	"06 01 02"    →  23 01 15
//	Two-digit years below 69 land in the 2000s.
//
// Time format:
//
//	"15:04" 24-hour notation. Validated only, never repaired.
//
// Categorical repair:
//
//	Free-text location, employee, and product values are corrected against
//	their allowed-value sets when the closest match scores at least 0.8 on
//	the Ratcliff-Obershelp similarity ratio (2M/T). Values at or above the
//	cutoff are replaced by the best match; values below it are reported and
//	the row is dropped. Empty values are always an error, never corrected.
//
// Weather categories:
//
//	Derived from the hourly cloud cover series and daily aggregates of the
//	historical weather archive:
//
//	  mean cloud cover 07:00–14:00 < 10%  →  sunny
//	  daily rain sum > 2 mm               →  rainy
//	  daily snowfall sum > 0.5 mm         →  snowy
//	  otherwise                           →  cloudy
//
// # ID Generation
//
// Transaction IDs are 16-character SHAKE-256 digests of a channel-specific
// identity string (for market rows: tag + repaired location + repaired
// employee + raw date + sale number). Deterministic IDs make loads idempotent
// (ON CONFLICT DO UPDATE) and replays safe. See [HashID].
package domain
