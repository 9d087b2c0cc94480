// Package pipe implements the half-duplex byte copier that moves traffic
// between one leg of a connection and the other, accounting every read into
// the Connection Registry before the corresponding write is issued.
//
// Grounded on the original implementation's pipe coroutine (read up to 1500
// bytes, account, write, repeat until EOF/close) and on the teacher's
// copyBuf in its HTTP proxy handler (buffer reuse, half-close on completion).
package pipe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"dpiproxy/internal/logging"
	"dpiproxy/internal/metrics"
	"dpiproxy/internal/proxyerr"
	"dpiproxy/internal/registry"
)

// chunkSize is the maximum number of bytes read from the source per
// iteration, per the wire contract in the spec this is grounded on.
const chunkSize = 1500

// Pipe moves bytes from Src to Dst, in one direction, accounting traffic
// against Key in dir as it goes.
type Pipe struct {
	Src       net.Conn
	Dst       net.Conn
	Registry  *registry.Registry
	Key       registry.Key
	Direction registry.Direction
	Logs      *logging.Loggers
}

// Run reads from Src and writes to Dst in chunkSize-sized steps until Src
// returns EOF, a read/write error occurs, or Src is closed from elsewhere.
// I/O errors are logged at error level with the connection key as context
// and are never returned to the caller — the pipe always terminates
// cleanly from its own point of view.
//
// On termination it half-closes Dst's write side and removes Key from the
// registry. Exactly one of the two pipes belonging to a connection wins
// that removal race; the winner emits the access-log line.
func (p *Pipe) Run() {
	buf := make([]byte, chunkSize)

	for {
		n, rerr := p.Src.Read(buf)
		if n > 0 {
			p.Registry.AddTraffic(p.Key, p.Direction, n)
			metrics.BytesTotal.WithLabelValues(directionLabel(p.Direction)).Add(float64(n))
			if _, werr := p.Dst.Write(buf[:n]); werr != nil {
				p.logTransferError(werr)
				break
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				p.logTransferError(rerr)
			}
			break
		}
	}

	closeWrite(p.Dst)
	p.finalize()
}

func (p *Pipe) logTransferError(err error) {
	p.Logs.Error.Errorf("%v", fmt.Errorf("%w: %s: %v", proxyerr.ErrTransfer, p.Key, err))
}

// closeWrite half-closes the write side of conn when possible, otherwise
// falls back to a full close.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
		return
	}
	_ = conn.Close()
}

func (p *Pipe) finalize() {
	info, ok := p.Registry.Remove(p.Key)
	if !ok {
		return
	}
	line := fmt.Sprintf("%s %s %s %s",
		info.StartTime.Format("2006-01-02 15:04:05"),
		info.SrcIP, info.Method, info.DstHost)
	p.Logs.Access.Info(line)
}

// DialTimeout is the dial timeout the handler uses for origin connections
// on both the CONNECT and the plain-HTTP path.
const DialTimeout = 10 * time.Second

// directionLabel converts a registry.Direction into the "direction" label
// value used by the bytes-transferred metric.
func directionLabel(dir registry.Direction) string {
	if dir == registry.In {
		return "in"
	}
	return "out"
}
