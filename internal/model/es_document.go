package model

// EsCatalogDocument is the document shape stored in the Elasticsearch
// catalog index. One document per catalog entry per version; the document
// ID is "<version_id>:<code>" so re-embedding overwrites instead of
// duplicating.
type EsCatalogDocument struct {
	VersionID string    `json:"version_id"`
	Code      string    `json:"code"`
	Label     string    `json:"label"`
	Vector    []float32 `json:"vector"`
}

// DocID returns the Elasticsearch document ID for this entry.
func (d EsCatalogDocument) DocID() string {
	return d.VersionID + ":" + d.Code
}
