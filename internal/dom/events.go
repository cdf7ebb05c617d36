package dom

import "golang.org/x/net/html"

// RenderEvent is published whenever a template render inserts new markup.
const RenderEvent = "template:render"

// Event is a named notification dispatched at an element. Detail carries
// the payload, conventionally including "relatedTarget".
type Event struct {
	Name       string
	Detail     map[string]any
	Bubbles    bool
	Cancelable bool

	// Target is nil for document-level events.
	Target        *Element
	CurrentTarget *Element

	defaultPrevented bool
	stopped          bool
}

// NewEvent returns a bubbling, cancelable event.
func NewEvent(name string, detail map[string]any) *Event {
	if detail == nil {
		detail = map[string]any{}
	}
	return &Event{Name: name, Detail: detail, Bubbles: true, Cancelable: true}
}

// RelatedTarget returns the element stored under detail["relatedTarget"].
func (e *Event) RelatedTarget() *Element {
	el, _ := e.Detail["relatedTarget"].(*Element)
	return el
}

func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation keeps the event from reaching further ancestors and
// document subscribers.
func (e *Event) StopPropagation() { e.stopped = true }

// Handler receives dispatched events.
type Handler func(*Event)

type handlerEntry struct {
	id uint64
	fn Handler
}

// Subscribe registers h for events named name that reach the document,
// either dispatched there directly or bubbled up from an element. The
// returned func removes the subscription.
func (d *Document) Subscribe(name string, h Handler) func() {
	d.nextSub++
	id := d.nextSub
	d.docSubs[name] = append(d.docSubs[name], handlerEntry{id: id, fn: h})
	return func() {
		d.docSubs[name] = removeEntry(d.docSubs[name], id)
	}
}

// On registers h for events named name dispatched at el or bubbling through
// it. The returned func removes the listener.
func (d *Document) On(el *Element, name string, h Handler) func() {
	d.nextSub++
	id := d.nextSub
	byName, ok := d.handlers[el.node]
	if !ok {
		byName = map[string][]handlerEntry{}
		d.handlers[el.node] = byName
	}
	byName[name] = append(byName[name], handlerEntry{id: id, fn: h})
	return func() {
		if m, ok := d.handlers[el.node]; ok {
			m[name] = removeEntry(m[name], id)
		}
	}
}

func removeEntry(entries []handlerEntry, id uint64) []handlerEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

// Dispatch delivers ev to target's listeners, then to each ancestor's when
// the event bubbles, then to document subscribers when the target is still
// attached. A nil target dispatches at the document only. It returns false
// if a listener prevented the default.
// Listener lists are snapshotted per node, so listeners added during
// dispatch see only later events.
func (d *Document) Dispatch(target *Element, ev *Event) bool {
	ev.Target = target
	if target != nil {
		for n := target.node; n != nil && !ev.stopped; n = n.Parent {
			if n.Type == html.ElementNode {
				d.deliver(d.handlers[n][ev.Name], ev, d.wrap(n))
			}
			if !ev.Bubbles {
				break
			}
		}
		if !ev.Bubbles {
			return !ev.defaultPrevented
		}
	}
	if !ev.stopped && (target == nil || target.Connected()) {
		d.deliver(d.docSubs[ev.Name], ev, nil)
	}
	ev.CurrentTarget = nil
	return !ev.defaultPrevented
}

func (d *Document) deliver(entries []handlerEntry, ev *Event, current *Element) {
	snapshot := append([]handlerEntry(nil), entries...)
	for _, h := range snapshot {
		if ev.stopped {
			return
		}
		ev.CurrentTarget = current
		h.fn(ev)
	}
}

// Trigger dispatches a bubbling, cancelable event named name at el with the
// given detail and returns it.
func (d *Document) Trigger(el *Element, name string, detail map[string]any) *Event {
	ev := NewEvent(name, detail)
	d.Dispatch(el, ev)
	return ev
}
