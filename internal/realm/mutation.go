package realm

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Op is the kind of structural change a record describes.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpText   Op = "text"
	OpReset  Op = "reset"
)

// Record is one structural change made during a realm task.
type Record struct {
	Op     Op
	Parent *html.Node
	Node   *html.Node
}

// Batch is every structural change one task made, delivered to subscribers
// in task order. One task, one batch.
type Batch struct {
	Seq     uint64
	Records []Record
}

// Added returns the nodes the batch inserted.
func (b Batch) Added() []*html.Node {
	var nodes []*html.Node
	for _, rec := range b.Records {
		if rec.Op == OpAdd {
			nodes = append(nodes, rec.Node)
		}
	}
	return nodes
}

// Removed returns the nodes the batch removed.
func (b Batch) Removed() []*html.Node {
	var nodes []*html.Node
	for _, rec := range b.Records {
		if rec.Op == OpRemove {
			nodes = append(nodes, rec.Node)
		}
	}
	return nodes
}

type subscription struct {
	id   int
	ch   chan Batch
	quit chan struct{}
}

// Subscribe registers a callback for mutation batches. Delivery is
// asynchronous and ordered per subscriber; the realm loop never waits on a
// callback. The returned function unsubscribes and is safe to call twice.
func (r *Realm) Subscribe(fn func(Batch)) func() {
	r.subMu.Lock()
	r.nextSub++
	sub := &subscription{
		id:   r.nextSub,
		ch:   make(chan Batch, 64),
		quit: make(chan struct{}),
	}
	r.subs[sub.id] = sub
	r.subMu.Unlock()

	go func() {
		for {
			select {
			case batch := <-sub.ch:
				fn(batch)
			case <-sub.quit:
				return
			}
		}
	}()

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if _, ok := r.subs[sub.id]; ok {
			delete(r.subs, sub.id)
			close(sub.quit)
		}
	}
}

// record appends to the current task's batch. Loop-only.
func (r *Realm) record(rec Record) {
	r.pending = append(r.pending, rec)
}

// flush delivers the batch the finished task accumulated.
func (r *Realm) flush() {
	if len(r.pending) == 0 {
		return
	}

	r.seq++
	batch := Batch{Seq: r.seq, Records: r.pending}
	r.pending = nil

	r.subMu.Lock()
	for _, sub := range r.subs {
		select {
		case sub.ch <- batch:
		default:
			r.logger.Warn("Mutation subscriber lagging, dropping batch",
				zap.Uint64("seq", batch.Seq),
				zap.Int("records", len(batch.Records)),
			)
		}
	}
	r.subMu.Unlock()
}
