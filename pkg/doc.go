// Package pkg provides the libraries behind bulkstat, a client for the
// Eurostat bulk download service.
//
// # Overview
//
// The service publishes datasets, dimension dictionaries, a metabase and a
// table of contents as files behind a single listing endpoint. The pkg
// directory is organized into layers:
//
//  1. [request] - canonical URL construction
//  2. [cache] - content-addressed response stores and freshness policy
//  3. [fetch] - cache-aware downloads, request coalescing and fan-out
//  4. [table] - HTML listing and delimited table parsing
//  5. [metabase] - the in-memory dataset/dimension/label index
//  6. [bulk] - the service topology and high-level client
//
// Supporting packages: [errors] (error codes), [observability] (hooks and
// OpenTelemetry metrics), [httputil] (HTTP client and retry), [render]
// (dataset diagrams) and [buildinfo].
//
// # Architecture
//
//	bulk.Client
//	     ↓ request.Build
//	fetch.Session ── cache.Store (file, sqlite, redis, mongo, ...)
//	     ↓ Transport
//	table.ParseListing / table.ParseDelimited
//	     ↓
//	metabase.Index (atomic snapshots)
//
// # Quick Start
//
//	store, _ := cache.Open(ctx, cache.Options{Dir: dir})
//	session := fetch.New(store, fetch.NewHTTPTransport(nil))
//	client, _ := bulk.NewClient(session, bulk.Options{})
//
//	dims, _ := client.Dimensions(ctx)
//	src, _ := client.MetabaseSource(false)
//	ix, _ := metabase.Load(ctx, src)
//	datasets, _ := ix.DatasetsFor("geo")
//
// [request]: github.com/matzehuels/bulkstat/pkg/request
// [cache]: github.com/matzehuels/bulkstat/pkg/cache
// [fetch]: github.com/matzehuels/bulkstat/pkg/fetch
// [table]: github.com/matzehuels/bulkstat/pkg/table
// [metabase]: github.com/matzehuels/bulkstat/pkg/metabase
// [bulk]: github.com/matzehuels/bulkstat/pkg/bulk
// [errors]: github.com/matzehuels/bulkstat/pkg/errors
// [observability]: github.com/matzehuels/bulkstat/pkg/observability
// [httputil]: github.com/matzehuels/bulkstat/pkg/httputil
// [render]: github.com/matzehuels/bulkstat/pkg/render
// [buildinfo]: github.com/matzehuels/bulkstat/pkg/buildinfo
package pkg
