// Package annotation recognizes den regions embedded in source comments.
//
// A region is a call line, optional attribute comments, optional input
// items, a start marker, optional output items and an end marker:
//
//	// @den::macro!
//	// attribute
//	struct Input;
//	// ```@den```
//	struct Output;
//	// ```@den```end:macro!
//
// Classify maps one line to a Tag. Engine consumes tags in line order and
// keeps a single open region; Parse runs both over a whole text. Regions do
// not nest: a call line always closes the previous region.
//
// Comment lines inside a region body (after the first item or the start
// marker) are ignored silently. Reporting them could be added as an
// informational warning if the grammar ever needs it.
package annotation
