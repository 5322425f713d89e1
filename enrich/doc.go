// Package enrich augments member profiles with data from services
// outside the parliamentary record: portrait images resolved through
// Wikidata, locally imported portrait files with their credit
// manifest, and company lookups in the CVR register.
//
// External lookups flow through a LookupCache so repeated runs reuse
// responses instead of hammering the services. The cache holds raw
// responses only; everything derived from them is recomputed each run.
package enrich
