package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNATSSink_PublishesEnvelope(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("registry.changes.crates-io-index.add")
	require.NoError(t, err)

	s, err := NewNATSSink(nc, "")
	require.NoError(t, err)

	require.NoError(t, s.Publish(context.Background(), "crates.io-index", change.Event{
		Kind: change.KindAdd,
		Name: "serde",
	}))
	require.NoError(t, s.Close())

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, "crates.io-index", env.Mirror)
	assert.Equal(t, change.KindAdd, env.Kind)
	assert.Equal(t, "serde", env.Name)
	assert.False(t, env.EmittedAt.IsZero())
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "crates-io-index", subjectToken("crates.io-index"))
	assert.Equal(t, "plain", subjectToken("plain"))
	assert.Equal(t, "a-b-c", subjectToken("a.b c"))
}
