// Connection Handler: drives one accepted socket through request-line
// parsing, origin dialing, registration, and the two relay Pipes.
//
// Grounded on the teacher's HandleConnection (per-connection goroutine,
// active-connection/duration metric bookkeeping, the
// log-and-return-without-propagating failure style) generalized from a
// single-destination TLS relay to the CONNECT/plain-HTTP split this wire
// protocol requires.
package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"dpiproxy/internal/blacklist"
	"dpiproxy/internal/config"
	"dpiproxy/internal/fragment"
	"dpiproxy/internal/logging"
	"dpiproxy/internal/metrics"
	"dpiproxy/internal/pipe"
	"dpiproxy/internal/proxyerr"
	"dpiproxy/internal/registry"
)

const (
	initialReadSize = 1500
	tlsHeaderSize   = 5
	clientHelloCap  = 2048
)

// Deps bundles the shared collaborators every handler goroutine needs.
// One Deps value is built once at startup and reused across connections.
type Deps struct {
	Config    *config.Config
	Blacklist *blacklist.Blacklist
	Registry  *registry.Registry
	Logs      *logging.Loggers

	// Track, if set, registers a pipe's completion channel with the
	// Listener/Supervisor's reaper. Handlers already join both pipes
	// directly before returning, so the reaper is a safety net rather
	// than the primary cleanup path.
	Track func(done <-chan struct{})
}

// HandleConnection steps the per-connection state machine described by
// the protocol: parse the request line, dial the origin, register the
// connection, and relay. It never panics or propagates an error to the
// caller — every failure path closes conn and logs instead.
func (d *Deps) HandleConnection(conn net.Conn) {
	defer conn.Close()

	metrics.ActiveConns.Inc()
	defer metrics.ActiveConns.Dec()

	start := time.Now()
	defer func() {
		metrics.ConnectionDuration.Observe(time.Since(start).Seconds())
	}()

	buf := make([]byte, initialReadSize)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return
	}
	initial := buf[:n]

	method, target, err := parseRequestLine(initial)
	if err != nil {
		d.fail(conn, err)
		return
	}

	var origin net.Conn
	var dstHost string

	if strings.EqualFold(method, "CONNECT") {
		origin, dstHost, err = d.handleConnect(conn, target)
	} else {
		origin, dstHost, err = d.handlePlain(initial)
	}
	if err != nil {
		d.fail(conn, err)
		return
	}
	defer origin.Close()

	key := connKey(conn)
	info := &registry.Info{
		SrcIP:     key.IP,
		SrcPort:   key.Port,
		DstHost:   dstHost,
		Method:    strings.ToUpper(method),
		StartTime: start,
	}
	if err := d.Registry.Register(key, info); err != nil {
		d.fail(conn, err)
		return
	}
	d.Registry.IncrementTotal()
	metrics.TotalConnections.Inc()

	d.relay(conn, origin, key)
}

// handleConnect implements the CONNECT branch: reply 200, dial the
// origin, read the 5-byte header plus up to 2048 bytes of ClientHello,
// then either fragment or forward it verbatim depending on the blacklist
// verdict.
func (d *Deps) handleConnect(conn net.Conn, target string) (net.Conn, string, error) {
	host, _, err := splitHostPort(target, "443")
	if err != nil {
		return nil, "", err
	}

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return nil, "", fmt.Errorf("%w: writing CONNECT reply: %v", proxyerr.ErrTransfer, err)
	}

	dialTarget := target
	if !strings.Contains(target, ":") {
		dialTarget = target + ":443"
	}

	origin, err := net.DialTimeout("tcp", dialTarget, pipe.DialTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", proxyerr.ErrOriginUnreachable, dialTarget, err)
	}

	header := make([]byte, tlsHeaderSize)
	hn, _ := io.ReadFull(conn, header)
	header = header[:hn]

	payload := make([]byte, clientHelloCap)
	pn, _ := conn.Read(payload)
	payload = payload[:pn]

	if d.Config.NoBlacklist || d.Blacklist.ContainsAny(payload) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		wire := fragment.Wire(fragment.Split(payload, rng))
		if _, err := origin.Write(wire); err != nil {
			origin.Close()
			return nil, "", fmt.Errorf("%w: writing fragmented payload: %v", proxyerr.ErrTransfer, err)
		}
		d.Registry.IncrementBlocked()
		metrics.BlockedConnections.Inc()
	} else {
		verbatim := append(append([]byte(nil), header...), payload...)
		if _, err := origin.Write(verbatim); err != nil {
			origin.Close()
			return nil, "", fmt.Errorf("%w: writing verbatim payload: %v", proxyerr.ErrTransfer, err)
		}
		d.Registry.IncrementAllowed()
		metrics.AllowedConnections.Inc()
	}

	return origin, host, nil
}

// handlePlain implements the plain-HTTP branch: locate the Host header in
// the already-read preamble, dial the origin, and forward the preamble
// verbatim before the two Pipes take over.
func (d *Deps) handlePlain(preamble []byte) (net.Conn, string, error) {
	host := findHostHeader(preamble)
	if host == "" {
		return nil, "", fmt.Errorf("%w: missing Host header", proxyerr.ErrBadRequest)
	}

	hostOnly, _, err := splitHostPort(host, "80")
	if err != nil {
		return nil, "", err
	}

	dialTarget := host
	if !strings.Contains(host, ":") {
		dialTarget = host + ":80"
	}

	origin, err := net.DialTimeout("tcp", dialTarget, pipe.DialTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", proxyerr.ErrOriginUnreachable, dialTarget, err)
	}

	if _, err := origin.Write(preamble); err != nil {
		origin.Close()
		return nil, "", fmt.Errorf("%w: forwarding preamble: %v", proxyerr.ErrTransfer, err)
	}
	d.Registry.IncrementAllowed()
	metrics.AllowedConnections.Inc()

	return origin, hostOnly, nil
}

// relay spawns the two Pipes for a registered connection and waits for
// both to finish before returning, at which point the handler's deferred
// closes run. Joining directly here, rather than only relying on the
// supervisor's periodic reaper, is the structured-concurrency approach
// the protocol calls out as preferable.
func (d *Deps) relay(client, origin net.Conn, key registry.Key) {
	doneOut := make(chan struct{})
	doneIn := make(chan struct{})

	run := func(src, dst net.Conn, dir registry.Direction, done chan struct{}) {
		defer close(done)
		(&pipe.Pipe{
			Src:       src,
			Dst:       dst,
			Registry:  d.Registry,
			Key:       key,
			Direction: dir,
			Logs:      d.Logs,
		}).Run()
	}

	if d.Track != nil {
		d.Track(doneOut)
		d.Track(doneIn)
	}

	go run(client, origin, registry.Out, doneOut)
	go run(origin, client, registry.In, doneIn)

	<-doneOut
	<-doneIn
}

// fail closes conn and logs the error; it is the shared failure path for
// every step-1-through-3 error, none of which are propagated further.
func (d *Deps) fail(conn net.Conn, err error) {
	conn.Close()
	metrics.ErrorsTotal.WithLabelValues(classify(err)).Inc()
	d.Logs.Error.Errorf("%v", err)
	if d.Config.Verbose {
		fmt.Println(color.New(color.FgYellow).Sprint("[NON-CRITICAL] ") + err.Error())
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, proxyerr.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, proxyerr.ErrOriginUnreachable):
		return "dial_failed"
	case errors.Is(err, proxyerr.ErrTransfer):
		return "transfer_failed"
	case errors.Is(err, proxyerr.ErrRegistryInconsistency):
		return "registry_inconsistency"
	default:
		return "other"
	}
}

// parseRequestLine splits the first line of initial on CRLF, then splits
// that line on spaces into (method, target).
func parseRequestLine(initial []byte) (method, target string, err error) {
	line := initial
	if idx := bytes.Index(initial, []byte("\r\n")); idx != -1 {
		line = initial[:idx]
	}

	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return "", "", fmt.Errorf("%w: malformed request line %q", proxyerr.ErrBadRequest, string(line))
	}
	return fields[0], fields[1], nil
}

// splitHostPort parses "host" or "host:port" into (host, port), applying
// defaultPort when no port is present. A non-numeric port is BadRequest.
func splitHostPort(hostport, defaultPort string) (host, port string, err error) {
	if i := strings.LastIndex(hostport, ":"); i != -1 {
		host, port = hostport[:i], hostport[i+1:]
		if _, perr := strconv.Atoi(port); perr != nil {
			return "", "", fmt.Errorf("%w: non-numeric port in %q", proxyerr.ErrBadRequest, hostport)
		}
		return host, port, nil
	}
	return hostport, defaultPort, nil
}

// findHostHeader scans preamble for a line of the form "Host: <value>"
// (case-insensitive header name) and returns the trimmed value, or "" if
// absent.
func findHostHeader(preamble []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(preamble))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) >= 5 && strings.EqualFold(line[:5], "Host:") {
			return strings.TrimSpace(line[5:])
		}
	}
	return ""
}

// connKey derives the Registry key from conn's remote address.
func connKey(conn net.Conn) registry.Key {
	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return registry.Key{IP: conn.RemoteAddr().String(), Port: "0"}
	}
	return registry.Key{IP: host, Port: port}
}
