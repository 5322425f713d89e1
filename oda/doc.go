// Package oda is a read-only client for the Danish Parliament's open
// data service at oda.ft.dk.
//
// # Overview
//
// The service speaks OData v3 over plain GET requests. Collections
// page with $top/$skip, and one-to-many expansions overflow through
// odata.nextLink continuation URLs instead. Column names carry Danish
// letters, so endpoint names ship pre-encoded and the Stemme decoder
// tolerates the spelling drift the actor id column has shown over the
// years, mojibake included.
//
// # Fetch shape
//
// A snapshot starts from Sagstrin: every case step in the date window
// that had at least one vote, with Afstemning, first-page Stemme, Sag,
// and Sagstrinstype expanded inline. Overflowing ballot pages drain
// through a bounded worker pool. Organizations, membership relations,
// and person actors follow in chunked id-filtered requests, because
// the service rejects unbounded disjunctions.
//
// Every request retries transient failures with a linear backoff, and
// paginated fetches space their requests out. The client holds no
// state beyond its configuration and is safe for concurrent use.
package oda
