// Package artifactstore implements domain.ArtifactStore over Firebase Storage (a GCS bucket) and
// S3-compatible object storage.
package artifactstore
