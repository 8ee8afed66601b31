package ws

// Close codes for abnormal websocket termination. Distinct codes let the
// client tell a bad credential from a bad session without a body.
const (
	CloseUnauthenticated = 4001
	CloseSessionNotFound = 4004
)

// Frame types (server -> client)
const (
	FrameChunk    = "chunk"
	FrameComplete = "complete"
	FrameError    = "error"
)

// InboundFrame is one user turn submitted over the socket.
type InboundFrame struct {
	Content string `json:"content"`
}

// OutboundFrame is a streamed response fragment, a completion marker carrying
// the persisted message id, or an error notification.
type OutboundFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func ChunkFrame(content string) *OutboundFrame {
	return &OutboundFrame{Type: FrameChunk, Content: content}
}

func CompleteFrame(messageID string) *OutboundFrame {
	return &OutboundFrame{Type: FrameComplete, MessageID: messageID}
}

func ErrorFrame(code, message string) *OutboundFrame {
	return &OutboundFrame{Type: FrameError, Code: code, Message: message}
}
