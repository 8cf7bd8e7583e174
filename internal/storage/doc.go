// Package storage uploads plan images to the backend's S3-compatible
// object store.
//
// Objects are named planID_timestamp.ext so successive uploads for the
// same plan never collide and sort chronologically. The public URL for
// an uploaded object comes from the configured base URL when set, or
// is derived from the endpoint and bucket otherwise.
package storage
