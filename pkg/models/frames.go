package models

// ClientFrame is one inbound message on the chat websocket.
type ClientFrame struct {
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	RequestID string         `json:"request_id"`
}

// Frame statuses emitted by the chat transport. One processing acknowledgment,
// zero or more chunks, then exactly one of complete or error.
const (
	StatusProcessing = "processing"
	StatusChunk      = "chunk"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// ChunkType distinguishes chunk payloads on the chat channel.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkMetadata ChunkType = "metadata"
)

// Chunk is the payload of one streamed chat frame.
type Chunk struct {
	Type     ChunkType      `json:"type"`
	Data     string         `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ServerFrame is one outbound message on the chat websocket.
type ServerFrame struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Chunk     *Chunk `json:"chunk,omitempty"`
	Error     string `json:"error,omitempty"`
}
