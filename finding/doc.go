// Package finding defines the severity scale shared by vulnerability findings
// and the mapping from CVSS base scores onto it.
//
// Severity bands are half-open on the upper bound except at the top of the
// scale:
//
//	[9, 10] critical
//	[7, 9)  high
//	[4, 7)  medium
//	[2, 4)  low
//	[0, 2)  info
//
// Scores outside [0, 10] map to medium, which is also the severity assigned
// when no score is available.
package finding
