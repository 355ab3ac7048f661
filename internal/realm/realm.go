// Package realm models a page's JavaScript realm: one cooperative event
// loop that owns the document, the global object and the structural
// primitives scripts can reach. Extension-side code never touches the
// document directly; it submits tasks with Do and the loop runs them one at
// a time, exactly as the host page's own scripts would interleave.
package realm

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/dom"
)

// RemoveFunc is the realm's remove-descendant primitive. Every structural
// removal executed inside the realm goes through the current value, which is
// what makes it a decoration point for the page guard.
type RemoveFunc func(parent, child *html.Node) *html.Node

// ScriptFunc is the registered behavior of an injected script element. It
// runs on the realm loop with the script element as its current script.
type ScriptFunc func(r *Realm, script *html.Node)

type task struct {
	fn   func()
	done chan struct{}
}

type Realm struct {
	doc         *html.Node
	globals     map[string]any
	removeChild RemoveFunc
	logger      *zap.Logger

	tasks     chan task
	done      chan struct{}
	closeOnce sync.Once

	seq     uint64
	pending []Record

	subMu   sync.Mutex
	subs    map[int]*subscription
	nextSub int
}

// New starts a realm loop over the given document.
func New(doc *html.Node, logger *zap.Logger) *Realm {
	r := &Realm{
		doc:     doc,
		globals: make(map[string]any),
		logger:  logger,
		tasks:   make(chan task, 64),
		done:    make(chan struct{}),
		subs:    make(map[int]*subscription),
	}
	r.removeChild = r.recordingRemove
	go r.loop()
	return r
}

func (r *Realm) loop() {
	for {
		select {
		case t := <-r.tasks:
			r.run(t)
		case <-r.done:
			return
		}
	}
}

func (r *Realm) run(t task) {
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Realm task panicked", zap.Any("panic", rec))
			}
		}()
		t.fn()
	}()
	r.flush()
	close(t.done)
}

// Do runs fn on the realm loop and waits for it to finish. Structural
// changes fn makes are flushed to subscribers as a single batch when it
// returns. Must not be called from inside a task; the loop is not reentrant.
func (r *Realm) Do(fn func()) {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case r.tasks <- t:
		select {
		case <-t.done:
		case <-r.done:
		}
	case <-r.done:
	}
}

// Close stops the loop. Queued tasks that never ran unblock their callers.
func (r *Realm) Close() {
	r.closeOnce.Do(func() {
		close(r.done)

		r.subMu.Lock()
		for id, sub := range r.subs {
			close(sub.quit)
			delete(r.subs, id)
		}
		r.subMu.Unlock()
	})
}

// Doc returns the realm's document root. Loop-only: call it from inside Do.
func (r *Realm) Doc() *html.Node {
	return r.doc
}

// ReplaceDoc swaps in a new document, as a full page re-parse does. Loop-only.
func (r *Realm) ReplaceDoc(doc *html.Node) {
	r.doc = doc
	r.record(Record{Op: OpReset, Node: doc})
}

// Global reads a key from the realm's global object. Loop-only.
func (r *Realm) Global(key string) (any, bool) {
	v, ok := r.globals[key]
	return v, ok
}

// SetGlobal writes a key on the realm's global object. Loop-only.
func (r *Realm) SetGlobal(key string, value any) {
	r.globals[key] = value
}

// DeleteGlobal removes a key from the realm's global object. Loop-only.
func (r *Realm) DeleteGlobal(key string) {
	delete(r.globals, key)
}

// Primitive returns the current remove-descendant primitive. Loop-only.
func (r *Realm) Primitive() RemoveFunc {
	return r.removeChild
}

// SetPrimitive swaps the remove-descendant primitive. Loop-only.
func (r *Realm) SetPrimitive(fn RemoveFunc) {
	r.removeChild = fn
}

// RemoveChild removes child from parent through the current primitive, so a
// wrapped primitive sees host-initiated removals too. Loop-only.
func (r *Realm) RemoveChild(parent, child *html.Node) *html.Node {
	return r.removeChild(parent, child)
}

// recordingRemove is the realm's native removal primitive.
func (r *Realm) recordingRemove(parent, child *html.Node) *html.Node {
	removed := dom.RemoveChild(parent, child)
	if removed != nil {
		r.record(Record{Op: OpRemove, Parent: parent, Node: removed})
	}
	return removed
}

// AppendChild attaches child under parent and records the insertion. Loop-only.
func (r *Realm) AppendChild(parent, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	dom.AppendChild(parent, child)
	r.record(Record{Op: OpAdd, Parent: parent, Node: child})
}

// InsertChildAt attaches child at a child index and records the insertion.
// Loop-only.
func (r *Realm) InsertChildAt(parent *html.Node, index int, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	dom.InsertChildAt(parent, index, child)
	r.record(Record{Op: OpAdd, Parent: parent, Node: child})
}

// SetText rewrites a node's text content and records a text change. Loop-only.
func (r *Realm) SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	dom.SetText(n, text)
	r.record(Record{Op: OpText, Parent: n.Parent, Node: n})
}

// InjectScript appends a script element with the given attributes to the
// document and runs its registered behavior immediately, the way a realm
// executes a script on insertion. The runner's panics stop at this boundary.
func (r *Realm) InjectScript(attrs map[string]string, runner ScriptFunc) {
	r.Do(func() {
		script := dom.NewElement("script", attrs)
		r.AppendChild(dom.Body(r.doc), script)

		if runner == nil {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Injected script panicked", zap.Any("panic", rec))
			}
		}()
		runner(r, script)
	})
}
