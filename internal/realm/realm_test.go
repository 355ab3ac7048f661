package realm

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/dom"
)

func newTestRealm(t *testing.T, markup string) *Realm {
	t.Helper()
	doc, err := dom.Parse(markup)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	r := New(doc, zap.NewNop())
	t.Cleanup(r.Close)
	return r
}

type batchRecorder struct {
	mu      sync.Mutex
	batches []Batch
}

func (br *batchRecorder) collect(b Batch) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.batches = append(br.batches, b)
}

func (br *batchRecorder) wait(t *testing.T, n int) []Batch {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		br.mu.Lock()
		if len(br.batches) >= n {
			out := make([]Batch, len(br.batches))
			copy(out, br.batches)
			br.mu.Unlock()
			return out
		}
		br.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d batches", n)
	return nil
}

func TestDoRunsTasksInOrder(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		r.Do(func() { order = append(order, n) })
	}

	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Fatalf("expected ordered execution, got %v", order)
	}
}

func TestOneTaskOneBatch(t *testing.T) {
	r := newTestRealm(t, `<html><body><div id="c"></div></body></html>`)

	rec := &batchRecorder{}
	unsub := r.Subscribe(rec.collect)
	defer unsub()

	r.Do(func() {
		container := dom.First(r.Doc(), "#c")
		r.AppendChild(container, dom.NewElement("p", nil))
		r.AppendChild(container, dom.NewElement("p", nil))
	})

	batches := rec.wait(t, 1)
	if len(batches[0].Records) != 2 {
		t.Fatalf("expected both inserts in one batch, got %d records", len(batches[0].Records))
	}
	if len(batches[0].Added()) != 2 {
		t.Fatalf("expected 2 added nodes, got %d", len(batches[0].Added()))
	}

	r.Do(func() {
		container := dom.First(r.Doc(), "#c")
		r.AppendChild(container, dom.NewElement("p", nil))
	})

	batches = rec.wait(t, 2)
	if batches[1].Seq <= batches[0].Seq {
		t.Fatalf("expected increasing batch sequence, got %d then %d", batches[0].Seq, batches[1].Seq)
	}
}

func TestTaskWithoutMutationsEmitsNoBatch(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	rec := &batchRecorder{}
	unsub := r.Subscribe(rec.collect)
	defer unsub()

	r.Do(func() {})
	r.Do(func() {
		r.AppendChild(dom.Body(r.Doc()), dom.NewElement("p", nil))
	})

	batches := rec.wait(t, 1)
	if len(batches) != 1 {
		t.Fatalf("expected exactly one batch, got %d", len(batches))
	}
}

func TestRemoveChildGoesThroughPrimitive(t *testing.T) {
	r := newTestRealm(t, `<html><body><div id="c"><p id="x"></p></div></body></html>`)

	var intercepted int
	r.Do(func() {
		orig := r.Primitive()
		r.SetPrimitive(func(parent, child *html.Node) *html.Node {
			intercepted++
			return orig(parent, child)
		})
	})

	r.Do(func() {
		container := dom.First(r.Doc(), "#c")
		target := dom.First(r.Doc(), "#x")
		if removed := r.RemoveChild(container, target); removed != target {
			t.Errorf("expected delegated removal to return the node")
		}
	})

	if intercepted != 1 {
		t.Fatalf("expected the swapped primitive to see the removal, got %d calls", intercepted)
	}

	r.Do(func() {
		if dom.First(r.Doc(), "#x") != nil {
			t.Errorf("expected node to be gone after delegated removal")
		}
	})
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	rec := &batchRecorder{}
	unsub := r.Subscribe(rec.collect)

	r.Do(func() {
		r.AppendChild(dom.Body(r.Doc()), dom.NewElement("p", nil))
	})
	rec.wait(t, 1)

	unsub()
	unsub() // second call is a no-op

	r.Do(func() {
		r.AppendChild(dom.Body(r.Doc()), dom.NewElement("p", nil))
	})

	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	got := len(rec.batches)
	rec.mu.Unlock()
	if got != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d batches", got)
	}
}

func TestPanicInTaskDoesNotKillLoop(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	r.Do(func() { panic("boom") })

	var ran bool
	r.Do(func() { ran = true })
	if !ran {
		t.Fatalf("expected loop to survive a panicking task")
	}
}

func TestInjectScriptRunsRunnerWithAttributes(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	var mode string
	r.InjectScript(map[string]string{"data-mode": "enable"}, func(r *Realm, script *html.Node) {
		mode = dom.Attr(script, "data-mode")
	})

	if mode != "enable" {
		t.Fatalf("expected runner to read its script attributes, got %q", mode)
	}

	r.Do(func() {
		if dom.First(r.Doc(), "script") == nil {
			t.Errorf("expected script element in the document")
		}
	})
}

func TestInjectScriptSurvivesPanickingRunner(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	r.InjectScript(nil, func(r *Realm, script *html.Node) { panic("script boom") })

	var ran bool
	r.Do(func() { ran = true })
	if !ran {
		t.Fatalf("expected realm to survive a panicking script")
	}
}

func TestGlobals(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	r.Do(func() {
		if _, ok := r.Global("k"); ok {
			t.Errorf("expected empty globals")
		}
		r.SetGlobal("k", 42)
		if v, ok := r.Global("k"); !ok || v.(int) != 42 {
			t.Errorf("expected stored global, got %v %v", v, ok)
		}
		r.DeleteGlobal("k")
		if _, ok := r.Global("k"); ok {
			t.Errorf("expected deleted global to be gone")
		}
	})
}

func TestCloseUnblocksPendingDo(t *testing.T) {
	r := newTestRealm(t, `<html><body></body></html>`)

	r.Close()

	done := make(chan struct{})
	go func() {
		r.Do(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Do on a closed realm to return")
	}
}
