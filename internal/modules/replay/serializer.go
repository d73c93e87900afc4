package replay

import (
	"sort"
	"strings"
	"time"

	"revi/agent-core/internal/pkg/utils"
)

// computedStyleAllowList is the fixed subset of computed properties worth
// shipping: layout, flex/grid, typography, background, effects, animation.
var computedStyleAllowList = []string{
	// layout
	"position", "top", "right", "bottom", "left",
	"width", "height", "min-width", "min-height", "max-width", "max-height",
	"margin", "padding", "border", "border-radius", "box-sizing",
	"overflow", "overflow-x", "overflow-y",
	// flex / grid
	"display", "flex", "flex-direction", "flex-wrap", "justify-content",
	"align-items", "align-content", "gap",
	"grid-template-columns", "grid-template-rows", "grid-area",
	// typography
	"font-family", "font-size", "font-weight", "font-style", "line-height",
	"letter-spacing", "text-align", "text-decoration", "text-transform",
	"white-space", "color",
	// background and effects
	"background", "background-color", "background-image", "background-size",
	"background-position", "box-shadow", "opacity", "filter", "visibility",
	"z-index",
	// animation
	"transform", "transition", "animation",
}

// Serializer walks a live document and produces Snapshots. It owns the
// node-identity map assigning session-stable integer ids; Go has no weak
// identity maps, so detached subtrees are released via Prune.
type Serializer struct {
	ids     map[*Node]int
	nextID  int
	maskAll bool
	now     func() time.Time
}

// NewSerializer creates a serializer. maskAllInputs forces masking of every
// form value regardless of sensitivity markers.
func NewSerializer(maskAllInputs bool) *Serializer {
	return &Serializer{
		ids:     make(map[*Node]int),
		nextID:  1,
		maskAll: maskAllInputs,
		now:     time.Now,
	}
}

// ID returns the session-stable id for a node, assigning the next integer on
// first sight. IDs are unique and start at 1.
func (s *Serializer) ID(n *Node) int {
	if id, ok := s.ids[n]; ok {
		return id
	}
	id := s.nextID
	s.nextID++
	s.ids[n] = id
	return id
}

// KnownID reports a node's id without assigning one.
func (s *Serializer) KnownID(n *Node) (int, bool) {
	id, ok := s.ids[n]
	return id, ok
}

// Snapshot serializes the whole document depth-first.
func (s *Serializer) Snapshot(doc Document) *Snapshot {
	snap := &Snapshot{
		URL:       doc.URL,
		Title:     doc.Title,
		Timestamp: s.now().UnixMilli(),
		Viewport:  doc.Viewport,
		Env:       doc.Env,
		Resources: doc.Resources,
		Styles:    serializeStyles(doc.Styles),
	}
	if doc.Root != nil {
		snap.Root = s.SerializeNode(doc.Root)
	}
	return snap
}

// Document is the host-supplied page handle.
type Document struct {
	URL       string
	Title     string
	Viewport  ViewportInfo
	Env       Environment
	Root      *Node
	Styles    []StyleSource
	Resources []Resource
}

// SerializeNode captures one subtree, reusing ids the identity map already
// knows.
func (s *Serializer) SerializeNode(n *Node) *SerializedNode {
	out := &SerializedNode{
		ID:   s.ID(n),
		Type: n.Type,
	}

	if n.Type == NodeText {
		if n.Parent != nil && n.Parent.InSensitiveSubtree() {
			out.Text = utils.MaskedText
		} else {
			out.Text = n.Text
		}
		return out
	}

	out.Tag = strings.ToLower(n.Tag)
	out.Attributes = s.serializeAttributes(n)
	out.ComputedStyle = filterComputedStyle(n.ComputedStyle)
	out.InlineStyle = serializeInlineStyle(n)

	rect := n.Rect
	out.Rect = &rect
	out.Visibility = &VisibilityState{
		Visible: isVisible(n),
		Opacity: n.Opacity,
		Display: n.Display,
		ZIndex:  n.ZIndex,
	}
	if st := interactionOf(n); st != (InteractionState{}) {
		i := st
		out.Interaction = &i
	}
	out.FormValue = s.formValue(n)
	if n.Overflows {
		out.Scroll = &ScrollState{Top: n.ScrollTop, Left: n.ScrollLeft}
	}

	out.Children = make([]*SerializedNode, 0, len(n.Children))
	for _, child := range n.Children {
		out.Children = append(out.Children, s.SerializeNode(child))
	}
	if len(out.Children) == 0 {
		out.Children = nil
	}
	return out
}

// serializeAttributes drops event-handler attributes and masks values in
// sensitive subtrees.
func (s *Serializer) serializeAttributes(n *Node) map[string]string {
	if len(n.Attributes) == 0 {
		return nil
	}

	sensitive := n.InSensitiveSubtree()
	out := make(map[string]string, len(n.Attributes))
	for k, v := range n.Attributes {
		key := strings.ToLower(k)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if sensitive && key == "value" {
			out[key] = utils.MaskedValue
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Serializer) formValue(n *Node) string {
	if n.Value == "" {
		return ""
	}
	if s.maskAll || n.InSensitiveSubtree() {
		return utils.MaskedValue
	}
	return n.Value
}

// Prune drops identity-map entries whose nodes are no longer reachable from
// root, releasing detached subtrees.
func (s *Serializer) Prune(root *Node) {
	reachable := make(map[*Node]bool, len(s.ids))
	var walk func(n *Node)
	walk = func(n *Node) {
		reachable[n] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}

	for n := range s.ids {
		if !reachable[n] {
			delete(s.ids, n)
		}
	}
}

func filterComputedStyle(style map[string]string) map[string]string {
	if len(style) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, prop := range computedStyleAllowList {
		if v, ok := style[prop]; ok && v != "" {
			out[prop] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// serializeInlineStyle keeps declarations in deterministic order with
// !important preserved.
func serializeInlineStyle(n *Node) map[string]string {
	if len(n.InlineStyle) == 0 {
		return nil
	}
	out := make(map[string]string, len(n.InlineStyle))
	keys := make([]string, 0, len(n.InlineStyle))
	for k := range n.InlineStyle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := n.InlineStyle[k]
		if n.Important[k] {
			v += " !important"
		}
		out[k] = v
	}
	return out
}

func isVisible(n *Node) bool {
	return n.Display != "none" && n.Opacity > 0 && n.Rect.Area() > 0
}

func interactionOf(n *Node) InteractionState {
	return InteractionState{
		Focused:  n.Focused,
		Hovered:  n.Hovered,
		Pressed:  n.Pressed,
		Disabled: n.Disabled,
		Checked:  n.Checked,
		Selected: n.Selected,
	}
}
