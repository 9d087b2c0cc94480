package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"dpiproxy/internal/proxyerr"
)

func TestRegisterAndRemove(t *testing.T) {
	r := New()
	key := Key{IP: "127.0.0.1", Port: "5000"}
	info := &Info{SrcIP: "127.0.0.1", SrcPort: "5000", DstHost: "example.com", Method: "CONNECT", StartTime: time.Now()}

	if err := r.Register(key, info); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	got, ok := r.Remove(key)
	if !ok || got != info {
		t.Errorf("Remove returned (%v, %v), want (%v, true)", got, ok, info)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after remove = %d, want 0", r.Len())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	key := Key{IP: "10.0.0.1", Port: "1"}
	r.Register(key, &Info{})

	if _, ok := r.Remove(key); !ok {
		t.Fatal("first Remove should succeed")
	}
	if info, ok := r.Remove(key); ok || info != nil {
		t.Errorf("second Remove = (%v, %v), want (nil, false)", info, ok)
	}
}

func TestRegisterDuplicateKeyFails(t *testing.T) {
	r := New()
	key := Key{IP: "10.0.0.1", Port: "2"}
	if err := r.Register(key, &Info{}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(key, &Info{})
	if !errors.Is(err, proxyerr.ErrRegistryInconsistency) {
		t.Errorf("Register duplicate = %v, want ErrRegistryInconsistency", err)
	}
}

func TestAddTrafficAdditivity(t *testing.T) {
	r := New()
	key := Key{IP: "10.0.0.1", Port: "3"}
	r.Register(key, &Info{})

	r.AddTraffic(key, In, 100)
	r.AddTraffic(key, Out, 50)
	r.AddTraffic(key, In, 25)

	snap := r.Snapshot()
	if snap.BytesIn != 125 || snap.BytesOut != 50 {
		t.Errorf("snapshot = %+v, want BytesIn=125 BytesOut=50", snap)
	}

	info, _ := r.Remove(key)
	if info.BytesIn != 125 || info.BytesOut != 50 {
		t.Errorf("info = %+v, want BytesIn=125 BytesOut=50", info)
	}
}

func TestAddTrafficAfterRemoveNoOps(t *testing.T) {
	r := New()
	key := Key{IP: "10.0.0.1", Port: "4"}
	r.Register(key, &Info{})
	r.Remove(key)

	r.AddTraffic(key, In, 10)

	snap := r.Snapshot()
	if snap.BytesIn != 0 {
		t.Errorf("global BytesIn = %d, want 0 (no-op once the key is absent)", snap.BytesIn)
	}
}

func TestConcurrentMutatorsSerializeCleanly(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{IP: "10.0.0.1", Port: string(rune('A' + i%26))}
			r.IncrementTotal()
			r.AddTraffic(key, Out, 1)
		}(i)
	}
	wg.Wait()

	if got := r.Snapshot().TotalConnections; got != 50 {
		t.Errorf("total_connections = %d, want 50", got)
	}
}
