package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRabbitMQCloseWithoutConnection(t *testing.T) {
	// Both the channel and the connection branch must be reached; neither
	// short-circuits the other.
	r := &RabbitMQ{}
	assert.NoError(t, r.Close())
}
