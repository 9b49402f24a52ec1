package roomstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSKey(t *testing.T) {
	assert.Equal(t, "rooms.AB12", natsKey("rooms/AB12"))
	assert.Equal(t, "users.42", natsKey("users/42"))
}

func TestNATSStoreContract(t *testing.T) {
	url := os.Getenv("HUEMIX_TEST_NATS_URL")
	if url == "" {
		t.Skip("HUEMIX_TEST_NATS_URL not set")
	}

	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.Bucket = "HUEMIX_TEST"
	s, err := NewNATSStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}
