package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func el(tag string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{
		Type:       NodeElement,
		Tag:        tag,
		Attributes: attrs,
		Opacity:    1,
		Display:    "block",
		Rect:       Rect{Width: 100, Height: 20},
	}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *Node {
	return &Node{Type: NodeText, Text: s}
}

func testDoc(root *Node) Document {
	return Document{
		URL:      "https://site.test/page",
		Title:    "Page",
		Viewport: ViewportInfo{Width: 1280, Height: 800, DPR: 2},
		Root:     root,
	}
}

func collectIDs(n *SerializedNode, out *[]int) {
	*out = append(*out, n.ID)
	for _, c := range n.Children {
		collectIDs(c, out)
	}
}

func TestSnapshotAssignsUniqueDepthFirstIDs(t *testing.T) {
	root := el("html", nil,
		el("body", nil,
			el("div", map[string]string{"id": "a"}, text("hi")),
			el("div", map[string]string{"id": "b"}),
		),
	)

	ser := NewSerializer(false)
	snap := ser.Snapshot(testDoc(root))

	var ids []int
	collectIDs(snap.Root, &ids)

	seen := map[int]bool{}
	for i, id := range ids {
		assert.GreaterOrEqual(t, id, 1)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		if i > 0 {
			// Depth-first assignment: every child id is larger than its
			// parent's, so parents always precede children.
			assert.Greater(t, id, ids[i-1])
		}
	}
}

func TestSnapshotReusesIDsAcrossSnapshots(t *testing.T) {
	root := el("html", nil, el("body", nil))

	ser := NewSerializer(false)
	first := ser.Snapshot(testDoc(root))
	second := ser.Snapshot(testDoc(root))

	assert.Equal(t, first.Root.ID, second.Root.ID)
	assert.Equal(t, first.Root.Children[0].ID, second.Root.Children[0].ID)
}

func TestSnapshotDropsEventHandlerAttributes(t *testing.T) {
	root := el("button", map[string]string{"onclick": "steal()", "type": "button"})

	snap := NewSerializer(false).Snapshot(testDoc(root))

	assert.NotContains(t, snap.Root.Attributes, "onclick")
	assert.Equal(t, "button", snap.Root.Attributes["type"])
}

func TestSnapshotMasksSensitiveSubtrees(t *testing.T) {
	pw := el("input", map[string]string{"type": "password", "value": "hunter2"})
	pw.Value = "hunter2"
	sensitive := el("div", map[string]string{"data-sensitive": ""}, text("secret text"))

	root := el("form", nil, pw, sensitive)
	snap := NewSerializer(false).Snapshot(testDoc(root))

	pwNode := snap.Root.Children[0]
	assert.Equal(t, "[Masked]", pwNode.Attributes["value"])
	assert.Equal(t, "[Masked]", pwNode.FormValue)

	textNode := snap.Root.Children[1].Children[0]
	assert.Equal(t, "[Masked Text]", textNode.Text)
}

func TestSnapshotMaskAllInputs(t *testing.T) {
	input := el("input", map[string]string{"type": "text"})
	input.Value = "plain"

	snap := NewSerializer(true).Snapshot(testDoc(el("form", nil, input)))

	assert.Equal(t, "[Masked]", snap.Root.Children[0].FormValue)
}

func TestSnapshotOmitsInaccessibleStylesheets(t *testing.T) {
	doc := testDoc(el("html", nil))
	doc.Styles = []StyleSource{
		{Href: "https://cdn.other/styles.css", Accessible: false},
		{Href: "/app.css", Accessible: true, Rules: []RawRule{
			{Selector: "#main .item", Props: map[string]string{"color": "red"}},
		}},
	}

	snap := NewSerializer(false).Snapshot(doc)

	require.Len(t, snap.Styles, 2)
	assert.True(t, snap.Styles[0].CrossOrigin)
	assert.Empty(t, snap.Styles[0].Rules)
	require.Len(t, snap.Styles[1].Rules, 1)
	assert.Equal(t, 110, snap.Styles[1].Rules[0].Specificity)
}

func TestComputedStyleAllowList(t *testing.T) {
	n := el("div", nil)
	n.ComputedStyle = map[string]string{
		"display":          "flex",
		"color":            "red",
		"-webkit-internal": "nope",
	}

	snap := NewSerializer(false).Snapshot(testDoc(n))

	assert.Equal(t, "flex", snap.Root.ComputedStyle["display"])
	assert.NotContains(t, snap.Root.ComputedStyle, "-webkit-internal")
}

func TestPruneReleasesDetachedNodes(t *testing.T) {
	child := el("div", nil)
	root := el("html", nil, child)

	ser := NewSerializer(false)
	ser.Snapshot(testDoc(root))
	_, known := ser.KnownID(child)
	require.True(t, known)

	root.RemoveChild(child)
	ser.Prune(root)

	_, known = ser.KnownID(child)
	assert.False(t, known)
}

// The round-trip contract: a snapshot plus the ordered change stream
// reconstructs the tree a fresh snapshot would produce.
func TestSnapshotPlusChangesReconstructsTree(t *testing.T) {
	span := el("span", nil, text("hi"))
	div := el("div", map[string]string{"id": "a", "class": "x"}, span)
	root := el("body", nil, div)

	ser := NewSerializer(false)
	doc := testDoc(root)
	s0 := ser.Snapshot(doc)

	rec := NewRecorder(ser, doc.Viewport)

	// Mutation 1: insert <em>!</em> as last child of #a.
	em := el("em", nil, text("!"))
	div.AppendChild(em)
	rec.RecordChildList(div, []*Node{em}, nil, -1)

	// Mutation 2: change #a's class from "x" to "x y".
	div.Attributes["class"] = "x y"
	rec.RecordAttribute(div, "class", "x", "x y")

	reconstructed := Apply(s0, rec.Stream())

	fresh := ser.Snapshot(doc)
	divRec := reconstructed.Root.Children[0]
	divFresh := fresh.Root.Children[0]

	assert.Equal(t, "x y", divRec.Attributes["class"])
	require.Len(t, divRec.Children, 2)
	assert.Equal(t, "em", divRec.Children[1].Tag)
	assert.Equal(t, "!", divRec.Children[1].Children[0].Text)

	// Node identity and structure match a fresh snapshot.
	assert.Equal(t, divFresh.ID, divRec.ID)
	assert.Equal(t, divFresh.Children[1].ID, divRec.Children[1].ID)
	assert.Equal(t, divFresh.Attributes["class"], divRec.Attributes["class"])
}

func TestApplyRemovals(t *testing.T) {
	a := el("div", map[string]string{"id": "a"})
	b := el("div", map[string]string{"id": "b"})
	root := el("body", nil, a, b)

	ser := NewSerializer(false)
	doc := testDoc(root)
	s0 := ser.Snapshot(doc)

	rec := NewRecorder(ser, doc.Viewport)
	root.RemoveChild(a)
	rec.RecordChildList(root, nil, []*Node{a}, -1)

	out := Apply(s0, rec.Stream())
	require.Len(t, out.Root.Children, 1)
	assert.Equal(t, "b", out.Root.Children[0].Attributes["id"])
}

func TestApplyCharacterDataAndStyle(t *testing.T) {
	txt := text("before")
	div := el("div", nil, txt)
	root := el("body", nil, div)

	ser := NewSerializer(false)
	doc := testDoc(root)
	s0 := ser.Snapshot(doc)

	rec := NewRecorder(ser, doc.Viewport)
	txt.Text = "after"
	rec.RecordCharacterData(txt, "after")
	rec.RecordAttribute(div, "style", "color: red", "color: blue; margin: 4px")

	out := Apply(s0, rec.Stream())
	outDiv := out.Root.Children[0]

	assert.Equal(t, "after", outDiv.Children[0].Text)
	assert.Equal(t, "blue", outDiv.InlineStyle["color"])
	assert.Equal(t, "4px", outDiv.InlineStyle["margin"])
}

func TestClassDeltaReportsAddedAndRemoved(t *testing.T) {
	added, removed := classDelta("x old", "x new shiny")

	assert.Equal(t, []string{"new", "shiny"}, added)
	assert.Equal(t, []string{"old"}, removed)
}

func TestVisualImpactGrading(t *testing.T) {
	viewport := ViewportInfo{Width: 1000, Height: 1000}
	ser := NewSerializer(false)
	rec := NewRecorder(ser, viewport)

	big := el("div", nil)
	big.Rect = Rect{Width: 800, Height: 800}
	medium := el("div", nil)
	medium.Rect = Rect{Width: 400, Height: 400}
	small := el("div", nil)
	small.Rect = Rect{Width: 10, Height: 10}

	rec.RecordAttribute(big, "data-x", "", "1")
	rec.RecordAttribute(medium, "data-x", "", "1")
	rec.RecordAttribute(small, "data-x", "", "1")

	stream := rec.Stream()
	require.Len(t, stream, 3)
	assert.Equal(t, ImpactMajor, stream[0].Impact)
	assert.Equal(t, ImpactModerate, stream[1].Impact)
	assert.Equal(t, ImpactMinor, stream[2].Impact)
}

func TestSubscriptionDelivery(t *testing.T) {
	ser := NewSerializer(false)
	rec := NewRecorder(ser, ViewportInfo{Width: 100, Height: 100})

	var got []Change
	sub := rec.Subscribe(func(ch Change) { got = append(got, ch) })

	target := el("div", nil)
	rec.RecordAttribute(target, "data-a", "", "1")
	require.Len(t, got, 1)

	sub.Close()
	rec.RecordAttribute(target, "data-b", "", "2")
	assert.Len(t, got, 1)
}
