package chat

import (
	"neurochat/internal/constants"
	"neurochat/internal/models"
)

// Exchange is the consumer side of one streamed completion. Fragments arrive
// on Chunks in order; when the channel closes, Wait reports either the
// persisted assistant message or the error that aborted the stream.
type Exchange struct {
	chunks chan string
	done   chan struct{}

	msg *models.Message
	err error
}

func newExchange() *Exchange {
	return &Exchange{
		chunks: make(chan string, constants.WSClientSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Chunks yields response fragments in upstream order. The channel is closed
// before Wait unblocks.
func (e *Exchange) Chunks() <-chan string {
	return e.chunks
}

// Wait blocks until the exchange settles. On success it returns the persisted
// assistant message; on failure the partial output was discarded and err
// explains why.
func (e *Exchange) Wait() (*models.Message, error) {
	<-e.done
	return e.msg, e.err
}

func (e *Exchange) complete(msg *models.Message) {
	e.msg = msg
	close(e.chunks)
	close(e.done)
}

func (e *Exchange) fail(err error) {
	e.err = err
	close(e.chunks)
	close(e.done)
}
