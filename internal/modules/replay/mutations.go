package replay

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"revi/agent-core/internal/pkg/utils"
)

// ChangeType classifies one mutation record.
type ChangeType string

const (
	ChangeChildList ChangeType = "childList"
	ChangeAttribute ChangeType = "attributes"
	ChangeCharData  ChangeType = "characterData"
	ChangeStyle     ChangeType = "style"
	ChangeClass     ChangeType = "class"
)

// Impact is the coarse visual-impact grade of a change.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactMajor    Impact = "major"
)

// StyleDelta is one per-property old/new pair.
type StyleDelta struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Change is one entry of the ordered mutation stream. Applying the stream to
// the preceding snapshot reconstructs the current tree.
type Change struct {
	Timestamp int64      `json:"timestamp"`
	Type      ChangeType `json:"type"`
	TargetID  int        `json:"target_id"`

	// childList fields. Index is the insertion position of the added block;
	// -1 appends.
	Added      []*SerializedNode `json:"added,omitempty"`
	Index      int               `json:"index,omitempty"`
	RemovedIDs []int             `json:"removed_ids,omitempty"`

	// attributes fields.
	AttrName string `json:"attr_name,omitempty"`
	AttrOld  string `json:"attr_old,omitempty"`
	AttrNew  string `json:"attr_new,omitempty"`
	Removed  bool   `json:"removed,omitempty"`

	// characterData fields.
	Text string `json:"text,omitempty"`

	// class fields.
	ClassAdded   []string `json:"class_added,omitempty"`
	ClassRemoved []string `json:"class_removed,omitempty"`

	// style fields.
	StyleDeltas map[string]StyleDelta `json:"style_deltas,omitempty"`

	Impact Impact `json:"impact,omitempty"`
}

// Subscription is the handle an observer holds on the change stream.
// Closing it releases the callback registration; nothing else keeps a
// reference.
type Subscription struct {
	recorder *Recorder
	id       int
}

// Close unregisters the callback. Safe to call twice.
func (s *Subscription) Close() {
	if s.recorder == nil {
		return
	}
	s.recorder.mu.Lock()
	delete(s.recorder.subs, s.id)
	s.recorder.mu.Unlock()
	s.recorder = nil
}

// Recorder merges DOM-mutation, resize and layout-shift observations into a
// single strictly ordered Change stream. All callbacks run on the host's
// main thread, which also owns the serializer's identity map.
type Recorder struct {
	ser      *Serializer
	viewport float64

	mu      sync.Mutex
	stream  []Change
	subs    map[int]func(Change)
	nextSub int
	now     func() time.Time
}

func NewRecorder(ser *Serializer, viewport ViewportInfo) *Recorder {
	return &Recorder{
		ser:      ser,
		viewport: float64(viewport.Width) * float64(viewport.Height),
		subs:     make(map[int]func(Change)),
		now:      time.Now,
	}
}

// Subscribe registers a consumer. The returned handle exclusively owns the
// registration.
func (r *Recorder) Subscribe(fn func(Change)) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return &Subscription{recorder: r, id: id}
}

// Stream returns a copy of the accumulated change list in capture order.
func (r *Recorder) Stream() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.stream...)
}

// Drain returns the accumulated changes and resets the stream.
func (r *Recorder) Drain() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stream
	r.stream = nil
	return out
}

// RecordChildList captures an insertion/removal on target. Added subtrees
// are fully serialized, reusing ids the identity map recognizes; removed
// nodes are reported by id. index is the insertion position, -1 for append.
func (r *Recorder) RecordChildList(target *Node, added []*Node, removed []*Node, index int) {
	ch := Change{
		Type:     ChangeChildList,
		TargetID: r.ser.ID(target),
		Index:    index,
		Impact:   r.impactOf(target),
	}
	for _, n := range added {
		ch.Added = append(ch.Added, r.ser.SerializeNode(n))
	}
	for _, n := range removed {
		if id, ok := r.ser.KnownID(n); ok {
			ch.RemovedIDs = append(ch.RemovedIDs, id)
		}
	}
	r.emit(ch)
}

// RecordAttribute captures one attribute transition. class and style
// attributes produce structured deltas instead of raw values.
func (r *Recorder) RecordAttribute(target *Node, name, oldValue, newValue string) {
	name = strings.ToLower(name)
	switch name {
	case "class":
		added, removed := classDelta(oldValue, newValue)
		r.emit(Change{
			Type:         ChangeClass,
			TargetID:     r.ser.ID(target),
			ClassAdded:   added,
			ClassRemoved: removed,
			Impact:       r.impactOf(target),
		})
	case "style":
		r.emit(Change{
			Type:        ChangeStyle,
			TargetID:    r.ser.ID(target),
			StyleDeltas: styleDelta(oldValue, newValue),
			Impact:      r.impactOf(target),
		})
	default:
		r.emit(Change{
			Type:     ChangeAttribute,
			TargetID: r.ser.ID(target),
			AttrName: name,
			AttrOld:  oldValue,
			AttrNew:  newValue,
			Removed:  newValue == "" && oldValue != "",
			Impact:   r.impactOf(target),
		})
	}
}

// RecordCharacterData captures a text-node content change.
func (r *Recorder) RecordCharacterData(target *Node, newText string) {
	text := newText
	if target.Parent != nil && target.Parent.InSensitiveSubtree() {
		text = utils.MaskedText
	}
	r.emit(Change{
		Type:     ChangeCharData,
		TargetID: r.ser.ID(target),
		Text:     text,
		Impact:   r.impactOf(target),
	})
}

// RecordResize captures an element-resize observation as width/height style
// deltas.
func (r *Recorder) RecordResize(target *Node, prev, next Rect) {
	r.emit(Change{
		Type:     ChangeStyle,
		TargetID: r.ser.ID(target),
		StyleDeltas: map[string]StyleDelta{
			"width":  {Old: px(prev.Width), New: px(next.Width)},
			"height": {Old: px(prev.Height), New: px(next.Height)},
		},
		Impact: impactOfArea(next.Area(), r.viewport),
	})
}

// RecordLayoutShift folds a layout-shift entry into the stream. It carries
// no tree delta; the impact grade is derived from the shift score.
func (r *Recorder) RecordLayoutShift(root *Node, score float64) {
	impact := ImpactMinor
	switch {
	case score >= 0.25:
		impact = ImpactMajor
	case score >= 0.1:
		impact = ImpactModerate
	}
	r.emit(Change{
		Type:     ChangeStyle,
		TargetID: r.ser.ID(root),
		Impact:   impact,
	})
}

func (r *Recorder) emit(ch Change) {
	ch.Timestamp = r.now().UnixMilli()

	r.mu.Lock()
	r.stream = append(r.stream, ch)
	subs := make([]func(Change), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	// Deliver outside the lock. Callbacks see capture order because every
	// emission runs on the host's single main thread.
	for _, fn := range subs {
		fn(ch)
	}
}

// impactOf grades a change by the target's bounding area relative to the
// viewport: over half is major, over a tenth moderate.
func (r *Recorder) impactOf(target *Node) Impact {
	return impactOfArea(target.Rect.Area(), r.viewport)
}

func impactOfArea(area, viewport float64) Impact {
	if viewport <= 0 {
		return ImpactMinor
	}
	ratio := area / viewport
	switch {
	case ratio > 0.5:
		return ImpactMajor
	case ratio > 0.1:
		return ImpactModerate
	default:
		return ImpactMinor
	}
}

func classDelta(oldValue, newValue string) (added, removed []string) {
	oldSet := classSet(oldValue)
	newSet := classSet(newValue)

	for c := range newSet {
		if !oldSet[c] {
			added = append(added, c)
		}
	}
	for c := range oldSet {
		if !newSet[c] {
			removed = append(removed, c)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func classSet(v string) map[string]bool {
	out := make(map[string]bool)
	for _, c := range strings.Fields(v) {
		out[c] = true
	}
	return out
}

// styleDelta diffs two inline-style declaration strings per property.
func styleDelta(oldValue, newValue string) map[string]StyleDelta {
	oldProps := parseDecls(oldValue)
	newProps := parseDecls(newValue)

	out := make(map[string]StyleDelta)
	for k, nv := range newProps {
		if ov := oldProps[k]; ov != nv {
			out[k] = StyleDelta{Old: ov, New: nv}
		}
	}
	for k, ov := range oldProps {
		if _, ok := newProps[k]; !ok {
			out[k] = StyleDelta{Old: ov, New: ""}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseDecls(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
