// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// CatalogIngestTask represents one catalog ingestion job: an object already
// uploaded to the bucket, to be loaded and embedded as a new version.
type CatalogIngestTask struct {
	VersionID        string `json:"version_id"`
	ObjectName       string `json:"object_name"`
	DeclaredChecksum string `json:"declared_checksum"`
	RequestedBy      string `json:"requested_by,omitempty"`
}
