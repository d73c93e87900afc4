package replay

import "strings"

// Apply reconstructs the tree a fresh snapshot would produce by replaying
// the ordered change stream on top of s0. The input snapshot is not
// modified.
func Apply(s0 *Snapshot, changes []Change) *Snapshot {
	out := *s0
	out.Root = s0.Root.Clone()

	index := make(map[int]*SerializedNode)
	parents := make(map[int]*SerializedNode)
	indexTree(out.Root, nil, index, parents)

	for _, ch := range changes {
		target, ok := index[ch.TargetID]
		if !ok {
			continue
		}
		out.Timestamp = ch.Timestamp

		switch ch.Type {
		case ChangeChildList:
			applyChildList(target, ch, index, parents)
		case ChangeAttribute:
			applyAttribute(target, ch)
		case ChangeClass:
			applyClass(target, ch)
		case ChangeCharData:
			target.Text = ch.Text
		case ChangeStyle:
			applyStyle(target, ch)
		}
	}
	return &out
}

func indexTree(n *SerializedNode, parent *SerializedNode, index map[int]*SerializedNode, parents map[int]*SerializedNode) {
	if n == nil {
		return
	}
	index[n.ID] = n
	if parent != nil {
		parents[n.ID] = parent
	}
	for _, c := range n.Children {
		indexTree(c, n, index, parents)
	}
}

func applyChildList(target *SerializedNode, ch Change, index, parents map[int]*SerializedNode) {
	for _, id := range ch.RemovedIDs {
		removeByID(target, id)
		delete(index, id)
		delete(parents, id)
	}

	if len(ch.Added) == 0 {
		return
	}

	added := make([]*SerializedNode, len(ch.Added))
	for i, n := range ch.Added {
		added[i] = n.Clone()
		indexTree(added[i], target, index, parents)
	}

	at := ch.Index
	if at < 0 || at > len(target.Children) {
		at = len(target.Children)
	}
	target.Children = append(target.Children[:at], append(added, target.Children[at:]...)...)
}

func removeByID(parent *SerializedNode, id int) {
	for i, c := range parent.Children {
		if c.ID == id {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return
		}
	}
	for _, c := range parent.Children {
		removeByID(c, id)
	}
}

func applyAttribute(target *SerializedNode, ch Change) {
	if ch.Removed {
		delete(target.Attributes, ch.AttrName)
		return
	}
	if target.Attributes == nil {
		target.Attributes = make(map[string]string)
	}
	target.Attributes[ch.AttrName] = ch.AttrNew
}

func applyClass(target *SerializedNode, ch Change) {
	classes := strings.Fields(target.Attributes["class"])

	kept := classes[:0]
	removed := make(map[string]bool, len(ch.ClassRemoved))
	for _, c := range ch.ClassRemoved {
		removed[c] = true
	}
	for _, c := range classes {
		if !removed[c] {
			kept = append(kept, c)
		}
	}

	present := make(map[string]bool, len(kept))
	for _, c := range kept {
		present[c] = true
	}
	for _, c := range ch.ClassAdded {
		if !present[c] {
			kept = append(kept, c)
		}
	}

	if target.Attributes == nil {
		target.Attributes = make(map[string]string)
	}
	target.Attributes["class"] = strings.Join(kept, " ")
}

func applyStyle(target *SerializedNode, ch Change) {
	if len(ch.StyleDeltas) == 0 {
		return
	}
	if target.InlineStyle == nil {
		target.InlineStyle = make(map[string]string)
	}
	for prop, delta := range ch.StyleDeltas {
		if delta.New == "" {
			delete(target.InlineStyle, prop)
			continue
		}
		target.InlineStyle[prop] = delta.New
	}
}
