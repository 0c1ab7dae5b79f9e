// Package bulk is a client for the bulk download service of the statistical
// office.
//
// The service publishes four kinds of resources behind one listing endpoint:
// dimension dictionaries (dic), datasets (data), the metabase index (base) and
// a table of contents (toc). Their directories, file extensions and
// compression are described by a read-only [Topology] table that the [Client]
// is given at construction.
//
//	c, err := bulk.NewClient(session, bulk.Options{Lang: "en"})
//	dims, err := c.Dimensions(ctx)
//	list, err := c.Datasets(ctx, true) // 26 letter pages, tolerant
//	src, err := c.MetabaseSource(false)
//	ix, err := metabase.Load(ctx, src)
package bulk
