// Package observe reacts to the host page re-rendering content the restorer
// already fixed. An Observer watches one container for structural child
// changes and classifies what appeared; watchers own the panel- and
// search-specific lifecycles on top of it.
package observe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/realm"
)

// Rule pairs a marker selector with the refresh routine it triggers. Rules
// are evaluated in registration order, so the first rule is the highest
// precedence.
type Rule struct {
	Name     string
	Selector string
	Handle   func(ctx context.Context)
}

// Observer classifies structural changes under a container. Per delivered
// batch at most one rule fires, whichever matches first; a batch full of
// markers still produces a single refresh.
type Observer struct {
	realm     *realm.Realm
	container *html.Node
	rules     []Rule
	logger    *zap.Logger

	ctx      context.Context
	stopOnce sync.Once
	unsub    func()
}

// Watch installs an observer on the container and immediately reconciles
// the markers already present, so content rendered before installation is
// not missed.
func Watch(ctx context.Context, r *realm.Realm, container *html.Node, rules []Rule, logger *zap.Logger) *Observer {
	o := &Observer{
		realm:     r,
		container: container,
		rules:     rules,
		logger:    logger,
		ctx:       ctx,
	}
	o.unsub = r.Subscribe(o.handleBatch)
	o.reconcile()
	return o
}

// Stop disconnects the observer. Safe to call more than once.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		if o.unsub != nil {
			o.unsub()
		}
		o.logger.Debug("Observer stopped")
	})
}

// reconcile runs one classification pass over the container's current
// content and fires the first matching rule.
func (o *Observer) reconcile() {
	var fire *Rule
	o.realm.Do(func() {
		for i := range o.rules {
			if dom.First(o.container, o.rules[i].Selector) != nil {
				fire = &o.rules[i]
				return
			}
		}
	})

	if fire != nil {
		o.logger.Debug("Initial content matched", zap.String("rule", fire.Name))
		fire.Handle(o.ctx)
	}
}

func (o *Observer) handleBatch(b realm.Batch) {
	var fire *Rule

	o.realm.Do(func() {
		for _, rec := range b.Records {
			if rec.Op != realm.OpRemove || !o.underContainer(rec.Parent) {
				continue
			}
			for i := range o.rules {
				if dom.First(rec.Node, o.rules[i].Selector) != nil {
					// Removals never trigger work; the next insertion will.
					o.logger.Debug("Marker removed", zap.String("rule", o.rules[i].Name))
					break
				}
			}
		}

		for i := range o.rules {
			for _, rec := range b.Records {
				if rec.Op != realm.OpAdd || !o.underContainer(rec.Parent) {
					continue
				}
				// The marker may be the added node itself or sit anywhere
				// inside the inserted subtree.
				if dom.First(rec.Node, o.rules[i].Selector) != nil {
					fire = &o.rules[i]
					return
				}
			}
		}
	})

	if fire != nil {
		o.logger.Debug("Marker appeared", zap.String("rule", fire.Name), zap.Uint64("batch", b.Seq))
		fire.Handle(o.ctx)
	}
}

func (o *Observer) underContainer(parent *html.Node) bool {
	return parent == o.container || dom.Contains(o.container, parent)
}

// WaitForNode polls the realm for a selector until it resolves or the budget
// runs out. A nil result is an expected outcome, not a failure.
func WaitForNode(ctx context.Context, r *realm.Realm, selector string, poll, budget time.Duration) *html.Node {
	deadline := time.Now().Add(budget)
	for {
		var found *html.Node
		r.Do(func() {
			found = dom.First(r.Doc(), selector)
		})
		if found != nil {
			return found
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}
	}
}
