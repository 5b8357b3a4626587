package worker

// IngestTaskPayload is the ingest.task message: one uploaded document to
// drive through the pipeline.
type IngestTaskPayload struct {
	DocumentID    string `json:"document_id"`
	OwnerID       string `json:"owner_id"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlation_id"`
}
