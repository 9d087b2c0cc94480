package pipe

import (
	"net"
	"testing"
	"time"

	"dpiproxy/internal/logging"
	"dpiproxy/internal/registry"
)

func TestRunCopiesAndAccountsBeforeRemoval(t *testing.T) {
	src, srcW := net.Pipe()
	dst, dstR := net.Pipe()

	reg := registry.New()
	key := registry.Key{IP: "127.0.0.1", Port: "9"}
	reg.Register(key, &registry.Info{SrcIP: "127.0.0.1", SrcPort: "9", Method: "CONNECT", DstHost: "example.com", StartTime: time.Now()})

	logs, err := logging.New("", "")
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	p := &Pipe{Src: src, Dst: dst, Registry: reg, Key: key, Direction: registry.Out, Logs: logs}

	runDone := make(chan struct{})
	go func() {
		p.Run()
		close(runDone)
	}()

	payload := []byte("payload bytes")
	go func() {
		srcW.Write(payload)
		srcW.Close()
	}()

	buf := make([]byte, len(payload))
	n, err := dstR.Read(buf)
	if err != nil {
		t.Fatalf("reading relayed bytes: %v", err)
	}
	if string(buf[:n]) != string(payload) {
		t.Errorf("relayed %q, want %q", buf[:n], payload)
	}

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate after source close")
	}

	if reg.Len() != 0 {
		t.Errorf("registry still holds %d entries after pipe termination", reg.Len())
	}
	if got := reg.Snapshot().BytesOut; got != uint64(len(payload)) {
		t.Errorf("global BytesOut = %d, want %d", got, len(payload))
	}
}
