// Package guard keeps the host page from tearing down the restored
// description container. It injects a script into the page realm that wraps
// the realm's remove-descendant primitive: removals aimed at the protected
// container (or anything inside it) are swallowed, everything else is
// delegated untouched. The extension side and the script share nothing but
// the script element's mode attribute and a marker on the realm's global
// object.
package guard

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/realm"
)

// ModeAttr is the attribute on the injected script element that carries the
// requested mode. The script reads it exactly once, when it starts.
const ModeAttr = "guard-mode"

// markerKey is the well-known key on the page's global object that marks an
// installed guard and holds what it needs to undo itself.
const markerKey = "__untranslateGuard"

// state lives on the global object while the guard is installed.
type state struct {
	original   realm.RemoveFunc
	container  *html.Node
	suppressed uint64
}

// Injector is the extension-side half: it creates the script element, sets
// the mode attribute and hands it to the realm.
type Injector struct {
	realm             *realm.Realm
	containerSelector string
	logger            *zap.Logger
}

func NewInjector(r *realm.Realm, containerSelector string, logger *zap.Logger) *Injector {
	return &Injector{
		realm:             r,
		containerSelector: containerSelector,
		logger:            logger,
	}
}

// Apply injects a guard script running in the given mode.
func (i *Injector) Apply(mode domain.GuardMode) {
	i.realm.InjectScript(
		map[string]string{ModeAttr: mode.String()},
		Runner(i.containerSelector, i.logger),
	)
}

func (i *Injector) Enable() {
	i.Apply(domain.GuardEnable)
}

func (i *Injector) Disable() {
	i.Apply(domain.GuardDisable)
}

// Suppressed reports how many removals the installed guard has swallowed so
// far. Zero when no guard is installed.
func (i *Injector) Suppressed() uint64 {
	var n uint64
	i.realm.Do(func() {
		if st, ok := installedState(i.realm); ok {
			n = st.suppressed
		}
	})
	return n
}

// Runner builds the page-realm behavior of the guard script. Nothing it does
// may escape the script boundary, whatever state the page is in.
func Runner(containerSelector string, logger *zap.Logger) realm.ScriptFunc {
	return func(r *realm.Realm, script *html.Node) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Guard script failed", zap.Any("panic", rec))
			}
		}()

		mode := domain.GuardMode(dom.Attr(script, ModeAttr))
		switch mode {
		case domain.GuardEnable:
			enable(r, containerSelector, logger)
		case domain.GuardDisable:
			disable(r, logger)
		default:
			logger.Warn("Guard script got unknown mode", zap.String("mode", mode.String()))
		}
	}
}

func enable(r *realm.Realm, containerSelector string, logger *zap.Logger) {
	if _, ok := installedState(r); ok {
		logger.Debug("Guard already installed, leaving it alone")
		return
	}

	container := dom.First(r.Doc(), containerSelector)
	if container == nil {
		logger.Debug("Protected container not in document, guard not installed",
			zap.String("selector", containerSelector))
		return
	}

	st := &state{
		original:  r.Primitive(),
		container: container,
	}
	r.SetGlobal(markerKey, st)

	r.SetPrimitive(func(parent, child *html.Node) *html.Node {
		if child == st.container || parent == st.container || dom.Contains(st.container, parent) {
			st.suppressed++
			logger.Debug("Suppressed removal of protected content",
				zap.Uint64("total_suppressed", st.suppressed))
			return child
		}
		return st.original(parent, child)
	})

	logger.Info("Removal guard installed", zap.String("selector", containerSelector))
}

func disable(r *realm.Realm, logger *zap.Logger) {
	st, ok := installedState(r)
	if !ok {
		logger.Debug("Guard not installed, nothing to disable")
		return
	}

	r.SetPrimitive(st.original)
	// Clearing the marker is what lets a later enable install a fresh guard.
	r.DeleteGlobal(markerKey)

	logger.Info("Removal guard removed", zap.Uint64("suppressed", st.suppressed))
}

func installedState(r *realm.Realm) (*state, bool) {
	v, ok := r.Global(markerKey)
	if !ok {
		return nil, false
	}
	st, ok := v.(*state)
	if !ok {
		// Someone else wrote our key; treat the guard as not installed.
		return nil, false
	}
	return st, true
}
