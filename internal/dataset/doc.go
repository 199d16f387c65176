// Package dataset loads saved reference datasets and diffs them.
//
// Equality is structural: global attributes, the variable set, and for each
// variable its attributes, dimensions and values must match. Values must have
// the same Go type, which carries both dtype and shape for the nested slices
// the NetCDF reader produces. NaN equals NaN at the same position.
//
// Compare attributes a mismatch to its causes in a fixed order so that two
// runs over the same inputs always produce the same report.
package dataset
