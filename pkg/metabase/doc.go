// Package metabase answers relational queries over the dataset/dimension/label
// table published by the bulk download service.
//
// The table is loaded from a [Source] into an immutable [Snapshot]. An [Index]
// holds the current snapshot behind an atomic pointer: [Index.Reload] builds
// a complete new snapshot and swaps it in, so a query running during a reload
// sees either the old table or the new one in full.
//
//	ix, err := metabase.Load(ctx, metabase.RemoteSource{Session: s, URL: url})
//	dims, err := ix.DimensionsFor("nama_10_gdp")
//	sets, err := ix.DatasetsFor("geo")
//
// An empty filter value means "no constraint". Querying before the first
// successful load fails with NOT_LOADED; naming a field outside
// dataset/dimension/label fails with SCHEMA_ERROR.
package metabase
