// Package request builds canonical request URLs for the bulk download service.
//
// # Overview
//
// A request is described by a [Spec]: a base address, ordered path segments
// and an insertion-ordered [Query]. [Build] turns it into the single
// canonical string used both for the HTTP request and as the basis of the
// cache key, so it is strictly deterministic: the same inputs always produce
// the same bytes.
//
// # Ordering
//
// Query keys are emitted in insertion order, except the reserved "sort" key
// which always comes first. The listing endpoint of the remote service
// ignores the other parameters when "sort" is not the first one.
//
// A slice value expands to one key=value pair per element:
//
//	q := request.NewQuery().Set("geo", "EU28").Set("time", []int{2010, 2011})
//	url, _ := request.Build("ec.europa.eu/eurostat/wdds", []string{"rest", "data"}, q, request.HTTP)
//	// http://ec.europa.eu/eurostat/wdds/rest/data?geo=EU28&time=2010&time=2011
//
// # Protocols
//
// Only http, https and ftp are accepted. Anything else fails with a
// CONFIG_ERROR.
package request
