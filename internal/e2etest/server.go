package e2etest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
)

// LogAddrKey is the log attribute under which the server reports the address it listens on.
const LogAddrKey = "addr"

// RunFunc starts a server and blocks until ctx is done. It has the signature of the main package's run function.
type RunFunc func(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error

// Server is a server running in the test process.
type Server struct {
	client *Client
	stop   context.CancelFunc
	done   chan struct{}
}

// StartServer runs the server in a goroutine and returns once it answers its health check. The server shuts down
// when the test finishes. It fails the test if the server exits or never becomes ready.
//
// The listening address is picked up from the server's log record carrying LogAddrKey, so lookupEnv may ask for a
// dynamic port such as localhost:0. Logs are written to logSink, usually a testhelpers.NewWriter.
func StartServer(t *testing.T, logSink io.Writer, lookupEnv func(string) (string, bool), run RunFunc) *Server {
	t.Helper()

	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == LogAddrKey {
				select {
				case addrCh <- a.Value.String():
				default:
				}
			}
			return a
		},
	})))

	ctx, stop := context.WithCancel(context.WithoutCancel(t.Context()))
	server := &Server{client: nil, stop: stop, done: make(chan struct{})}
	runErr := make(chan error, 1)
	go func() {
		defer close(server.done)
		runErr <- run(ctx, logger, lookupEnv)
	}()
	t.Cleanup(server.Shutdown)

	select {
	case err := <-runErr:
		t.Fatalf("Server exited before listening: %v", err)
	case addr := <-addrCh:
		server.client = NewClient("http://" + addr)
	}
	if err := server.client.WaitForReady(t.Context(), "/api/healthy"); err != nil {
		t.Fatalf("Server not ready: %v", err)
	}
	return server
}

func (s *Server) Client() *Client {
	return s.client
}

// Shutdown stops the server and waits for run to return. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.stop()
	<-s.done
}
