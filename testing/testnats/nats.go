package testnats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Server is a throwaway NATS broker running in a container.
type Server struct {
	container testcontainers.Container
	URL       string
}

// Start runs a NATS container for the lifetime of t.
func Start(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForListeningPort("4222/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate NATS container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return &Server{
		container: container,
		URL:       "nats://" + host + ":" + port.Port(),
	}
}

// Subscribe returns a channel receiving every message on subject. The
// subscription is flushed before returning so no publish is missed.
func (s *Server) Subscribe(t *testing.T, subject string) <-chan *nats.Msg {
	t.Helper()

	conn, err := nats.Connect(s.URL, nats.Timeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	msgs := make(chan *nats.Msg, 16)
	_, err = conn.ChanSubscribe(subject, msgs)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	return msgs
}
