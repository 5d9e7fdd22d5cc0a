package worker

// ReindexTopic carries requests to rebuild one document's embeddings
// from its stored raw content.
const ReindexTopic = "document.reindex"

type ReindexPayload struct {
	Filename      string `json:"filename"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
