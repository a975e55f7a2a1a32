package probehead

import (
	"log/slog"
	"net"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
)

// Loopback connects a client to e through an in-memory pipe. The emulator
// stops when the client is closed.
func Loopback(e *Emulator, logger *slog.Logger) *link.Client {
	host, head := net.Pipe()
	go func() {
		defer head.Close()
		if err := e.Serve(head); err != nil {
			e.logger().Warn("emulator stopped", "error", err)
		}
	}()
	return link.NewClient(link.NewConnPort(host, 2*time.Millisecond), logger)
}
