// Small string-valued cache with a fixed TTL, used to keep per-guild configuration snapshots close to the event pipeline.
//
// Includes an interface and implementations using redis and in-process memory. Values are opaque strings; callers serialize (usually JSON) themselves.
package cachestore
