package restore

import (
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/domain"
	"github.com/kapu/untranslate-go/internal/util"
)

// Writer applies text mutations. The realm satisfies this so patches flow
// through its mutation records; tests plug in a plain writer.
type Writer interface {
	SetText(n *html.Node, text string)
}

// ApplyExact restores an element's text when it no longer matches the
// original. Comparison is normalized, so whitespace reflow and translation
// markers do not cause rewrites of text that is already right.
func ApplyExact(w Writer, scope *html.Node, selector, original string) domain.Action {
	if original == "" {
		return domain.ActionUnavailable
	}

	node := dom.First(scope, selector)
	if node == nil {
		return domain.ActionAbsent
	}

	if util.EqualNormalized(dom.Text(node), original) {
		return domain.ActionAlreadyCorrect
	}

	w.SetText(node, original)
	return domain.ActionPatched
}

// ApplyPrefix is ApplyExact for text the host renders with trailing extras
// the upstream original does not carry. Live text that starts with the
// original counts as correct; anything else is replaced wholesale.
func ApplyPrefix(w Writer, scope *html.Node, selector, original string) domain.Action {
	if original == "" {
		return domain.ActionUnavailable
	}

	node := dom.First(scope, selector)
	if node == nil {
		return domain.ActionAbsent
	}

	live := dom.Text(node)
	if util.EqualNormalized(live, original) || util.HasNormalizedPrefix(live, original) {
		return domain.ActionAlreadyCorrect
	}

	w.SetText(node, original)
	return domain.ActionPatched
}
