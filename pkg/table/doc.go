// Package table turns raw remote content into rows with named columns.
//
// Two input shapes are supported:
//
//   - HTML listing pages ([ParseListing]): a table whose first two rows are
//     decorative headers, followed by one row per file with the file name as
//     the anchor text of the first cell.
//   - Delimited text ([ParseDelimited]): newline-separated records, optionally
//     gzip, bzip2 or zip compressed, with columns assigned by position.
//
// Listing entries carry a compound suffix such as ".dic" or ".tsv.gz".
// [Names] strips an expected suffix and drops entries that lack it.
package table
