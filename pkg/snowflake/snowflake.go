package snowflake

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"sync"
	"time"
)

// Generator produces 64-bit ids composed of a 41-bit millisecond
// timestamp, a 10-bit worker id and a 12-bit per-millisecond sequence.
// Ids are strictly increasing within one generator as long as the wall
// clock does not move backward.
type Generator struct {
	workerId int64
	mu       sync.Mutex
	seq      int64
	lastTs   int64
	now      func() time.Time
}

const (
	// epoch is 2024-01-01 00:00:00 UTC in milliseconds.
	epoch = 1704067200000

	workerIdBits = 10
	sequenceBits = 12

	maxWorkerId = -1 ^ (-1 << workerIdBits) // 1023
	maxSequence = -1 ^ (-1 << sequenceBits) // 4095

	workerIdShift  = sequenceBits
	timestampShift = sequenceBits + workerIdBits
)

// ErrClockMovedBack is returned when the wall clock is observed behind
// the last issued timestamp. Continuing would risk id collisions, so
// callers must treat this as fatal rather than retry.
var ErrClockMovedBack = errors.New("snowflake: clock moved backwards")

// New creates a generator for the given worker id. One generator is
// constructed at process start and shared by all callers.
func New(workerId int64) (*Generator, error) {
	if workerId < 0 || workerId > maxWorkerId {
		return nil, fmt.Errorf("snowflake: worker id must be in [0, %d], got %d", maxWorkerId, workerId)
	}
	g := &Generator{
		workerId: workerId,
		lastTs:   -1,
		now:      time.Now,
	}
	return g, nil
}

// Next returns the next id. Safe for concurrent use. It blocks only
// when the 4096-value sequence space of the current millisecond is
// exhausted, in which case it spins until the clock advances.
func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if ts < g.lastTs {
		return 0, fmt.Errorf("%w by %dms", ErrClockMovedBack, g.lastTs-ts)
	}

	if ts == g.lastTs {
		g.seq = (g.seq + 1) & maxSequence
		if g.seq == 0 {
			// sequence exhausted, wait for the next millisecond
			for ts <= g.lastTs {
				ts = g.now().UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastTs = ts

	id := ((ts - epoch) << timestampShift) |
		(g.workerId << workerIdShift) |
		g.seq
	return id, nil
}

// WorkerId reports the worker id this generator was built with.
func (g *Generator) WorkerId() int64 {
	return g.workerId
}

// Decompose splits an id into its timestamp (unix millis), worker id
// and sequence parts.
func Decompose(id int64) (ts int64, workerId int64, seq int64) {
	ts = (id >> timestampShift) + epoch
	workerId = (id >> workerIdShift) & maxWorkerId
	seq = id & maxSequence
	return
}

// DeriveWorkerId derives a stable worker id from the machine's hardware
// addresses, reduced modulo the worker id space. When no interface
// exposes a hardware address it falls back to a cryptographically
// random value.
func DeriveWorkerId() int64 {
	ifaces, err := net.Interfaces()
	if err == nil {
		h := fnv.New64a()
		found := false
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) > 0 {
				h.Write(iface.HardwareAddr)
				found = true
			}
		}
		if found {
			return int64(h.Sum64() % (maxWorkerId + 1))
		}
	}
	return randomWorkerId()
}

func randomWorkerId() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// rand.Read failing means the platform entropy source is
		// broken; the zero id still yields valid ids.
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:]) % (maxWorkerId + 1))
}
