// Package comms implements the point-to-point halo exchange that keeps
// block vectors consistent across domain partitions. Partitions in a World
// run as goroutines; messages travel over buffered channels so Initiate
// never blocks, and Complete drains arrivals in whatever order they land.
package comms

import (
	"fmt"
	"sync"

	"github.com/AdityaSkhorne/SU2/utils"
)

// Kind discriminates the communicated quantity.
type Kind uint8

const (
	// Solution exchanges owned-point values forward into the peers' halo
	// slots, overwriting them.
	Solution Kind = iota
	// SolutionReverse runs the exchange backward for transposed products:
	// halo-slot partial sums travel to the owner and are accumulated.
	SolutionReverse
)

func (k Kind) String() string {
	switch k {
	case Solution:
		return "Solution"
	case SolutionReverse:
		return "SolutionReverse"
	}
	return "Unknown"
}

// message carries one neighbor's packed point data. buf aliases the sender's
// shared send buffer; the receiver signals done after scattering so the
// sender knows the region may be reused.
type message[T utils.Float] struct {
	source int
	kind   Kind
	count  int // values per point
	buf    []T
	done   chan struct{}
}

// Partition is one rank's endpoint. The send/receive point lists are
// per-neighbor, index-aligned with the peer's opposite list.
type Partition[T utils.Float] struct {
	rank  int
	world *World[T]
	inbox chan message[T]

	neighbors []int
	slotOf    map[int]int // neighbor rank -> slot
	sendPts   [][]int
	recvPts   [][]int
	sendOff   []int // prefix point offsets into bufSend, per slot
	recvOff   []int

	// Shared scratch, lazily grown to the largest count per point seen so
	// far and never shrunk. Safe to reuse across rounds because Complete
	// waits for all in-flight sends before returning.
	countPerPoint int
	bufSend       []T
	bufRecv       []T

	pending []chan struct{}

	// Messages that arrived early: a fast neighbor may have finished this
	// round and initiated the next before we drained our inbox. At most one
	// message per neighbor belongs to the current round, so a repeat source
	// is stashed here for the following round.
	backlog []message[T]
}

// nextMessage returns the next message of the current round, preferring the
// backlog, in arrival order. seen tracks sources already handled this round.
func (p *Partition[T]) nextMessage(seen map[int]bool) message[T] {
	for i, m := range p.backlog {
		if !seen[m.source] {
			p.backlog = append(p.backlog[:i], p.backlog[i+1:]...)
			return m
		}
	}
	for {
		m := <-p.inbox
		if seen[m.source] {
			p.backlog = append(p.backlog, m)
			continue
		}
		return m
	}
}

func (p *Partition[T]) Rank() int        { return p.rank }
func (p *Partition[T]) World() *World[T] { return p.world }

// SetNeighbor registers the exchange lists for one neighbor rank: send lists
// the owned local points packed toward that rank, recv the halo local points
// filled from it. Order must match the peer's opposite registration.
func (p *Partition[T]) SetNeighbor(rank int, send, recv []int) {
	if _, dup := p.slotOf[rank]; dup {
		panic(fmt.Errorf("rank %d: neighbor %d registered twice", p.rank, rank))
	}
	p.slotOf[rank] = len(p.neighbors)
	p.neighbors = append(p.neighbors, rank)
	p.sendPts = append(p.sendPts, send)
	p.recvPts = append(p.recvPts, recv)
	p.sendOff = append(p.sendOff, p.sendOff[len(p.sendOff)-1]+len(send))
	p.recvOff = append(p.recvOff, p.recvOff[len(p.recvOff)-1]+len(recv))
	p.countPerPoint = 0 // force buffer regrowth
}

func (p *Partition[T]) allocate(count int) {
	p.countPerPoint = count
	p.bufSend = make([]T, count*p.sendOff[len(p.sendOff)-1])
	p.bufRecv = make([]T, count*p.recvOff[len(p.recvOff)-1])
}

// Initiate posts this round's sends. For each neighbor the relevant points
// of x are packed into a contiguous slice of the shared buffer and handed
// off without blocking; receives need no posting since each inbox already
// accepts every neighbor's message. In reverse mode the halo (receive)
// point lists are packed instead and travel back to their owners.
func (p *Partition[T]) Initiate(x []T, count int, kind Kind) {
	if len(p.neighbors) == 0 {
		return
	}
	if count > p.countPerPoint {
		p.allocate(count)
	}

	var (
		buf  []T
		pts  [][]int
		offs []int
	)
	switch kind {
	case Solution:
		buf, pts, offs = p.bufSend, p.sendPts, p.sendOff
	case SolutionReverse:
		buf, pts, offs = p.bufRecv, p.recvPts, p.recvOff
	default:
		panic(fmt.Errorf("unrecognized quantity %v for point-to-point comms", kind))
	}

	// Pack at stride count, not countPerPoint, so the receiver's scatter
	// stride matches even when the buffer was grown for a larger count.
	for m := range p.neighbors {
		var (
			msgOff = offs[m] * count
			nSend  = len(pts[m])
		)
		for iSend, pt := range pts[m] {
			bufOff := msgOff + iSend*count
			copy(buf[bufOff:bufOff+count], x[pt*count:(pt+1)*count])
		}
		msg := message[T]{
			source: p.rank,
			kind:   kind,
			count:  count,
			buf:    buf[msgOff : msgOff+nSend*count],
			done:   make(chan struct{}, 1),
		}
		p.pending = append(p.pending, msg.done)
		p.world.ranks[p.neighbors[m]].inbox <- msg
	}
}

// Complete drains this round's messages in arrival order, scattering each by
// the sending neighbor's slot: forward mode overwrites the halo points,
// reverse mode accumulates into the owned points since several partitions
// may contribute partial sums to the same entry. It finishes by waiting for
// all locally posted sends to be consumed, after which the shared buffers
// are free for the next round.
func (p *Partition[T]) Complete(x []T, count int, kind Kind) {
	if len(p.neighbors) == 0 {
		return
	}

	var pts [][]int
	switch kind {
	case Solution:
		pts = p.recvPts
	case SolutionReverse:
		pts = p.sendPts
	default:
		panic(fmt.Errorf("unrecognized quantity %v for point-to-point comms", kind))
	}

	seen := make(map[int]bool, len(p.neighbors))
	for iMessage := 0; iMessage < len(p.neighbors); iMessage++ {
		msg := p.nextMessage(seen)
		seen[msg.source] = true
		if msg.kind != kind || msg.count != count {
			panic(fmt.Errorf("rank %d: expected %v(%d) message, got %v(%d) from %d",
				p.rank, kind, count, msg.kind, msg.count, msg.source))
		}
		slot, known := p.slotOf[msg.source]
		if !known {
			panic(fmt.Errorf("rank %d: message from non-neighbor rank %d", p.rank, msg.source))
		}
		for iRecv, pt := range pts[slot] {
			bufOff := iRecv * msg.count
			for iVar := 0; iVar < count; iVar++ {
				if kind == Solution {
					x[pt*count+iVar] = msg.buf[bufOff+iVar]
				} else {
					x[pt*count+iVar] += msg.buf[bufOff+iVar]
				}
			}
		}
		msg.done <- struct{}{}
	}

	for _, done := range p.pending {
		<-done
	}
	p.pending = p.pending[:0]
}

// World joins np partition endpoints. It also hosts the collective sum
// reduction used for diagnostics (linelet statistics).
type World[T utils.Float] struct {
	ranks []*Partition[T]
	red   reduction
}

func NewWorld[T utils.Float](np int) *World[T] {
	w := &World[T]{ranks: make([]*Partition[T], np)}
	w.red.cond = sync.NewCond(&w.red.mu)
	w.red.size = np
	for i := 0; i < np; i++ {
		w.ranks[i] = &Partition[T]{
			rank:  i,
			world: w,
			// Room for a full round from every neighbor plus a round of
			// early arrivals, so posting a send never blocks.
			inbox:   make(chan message[T], utils.MaxInt(2*np, 2)),
			slotOf:  make(map[int]int),
			sendOff: []int{0},
			recvOff: []int{0},
		}
	}
	return w
}

func (w *World[T]) Size() int                { return len(w.ranks) }
func (w *World[T]) Rank(i int) *Partition[T] { return w.ranks[i] }

type reduction struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	sum     float64
	arrived int
	gen     int
	result  float64
}

// AllreduceSum is a collective: every rank of the world must call it, each
// receives the global sum. Reusable across rounds via a generation count.
func (w *World[T]) AllreduceSum(v float64) float64 {
	r := &w.red
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.gen
	r.sum += v
	r.arrived++
	if r.arrived == r.size {
		r.result = r.sum
		r.sum = 0
		r.arrived = 0
		r.gen++
		r.cond.Broadcast()
	} else {
		for gen == r.gen {
			r.cond.Wait()
		}
	}
	return r.result
}
