// Package endpoint is the gateway's configuration store: the mapping from
// endpoint name to upstream target.
//
// The mapping lives in an immutable, versioned Snapshot. Store.Snapshot is a
// single atomic load and never waits on a reload. Store.Reload fetches a
// document from a Source, parses and validates it off to the side, and only
// then publishes the new snapshot with one pointer swap, incrementing the
// version. A rejected document leaves the active snapshot untouched and
// returns a *ConfigError describing the offending entry.
//
// Documents are YAML, JSON or TOML:
//
//	endpoints:
//	  - name: users
//	    url: http://users.internal:8080/api
//	    timeout: 5s
//	    headers:
//	      X-Api-Key: s3cr3t
package endpoint
