package constants

const (
	// IDRandomBytes is the number of random bytes in generated row IDs.
	IDRandomBytes = 8

	// AuthCodeLength is the length of a one-time login code.
	AuthCodeLength = 8

	// MaxMessageContentLength is the maximum message content length in characters.
	MaxMessageContentLength = 16000

	// SessionTitleMaxLength is the number of characters of the first user
	// message used as the session title before truncation.
	SessionTitleMaxLength = 50

	// WSClientSendBufferSize bounds the per-connection outbound frame buffer.
	WSClientSendBufferSize = 32
)
