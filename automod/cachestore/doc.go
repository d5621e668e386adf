// Short-lived caching of typed values with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory. Keys are shared between all users of a store, so callers prefix them (eg "perms/<tenant>/<user>").
//
// Used by the platform bridge to cache member permission lookups, reducing load on the chat platform API.
package cachestore
