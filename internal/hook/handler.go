package hook

import (
	"reflect"
	"unsafe"
)

// handler is one registered callback plus its metadata.
// Exactly one of action and filter is set, matching kind.
type handler struct {
	id       string
	kind     Kind
	hook     string
	seq      uint64
	priority int
	receiver any
	once     bool

	action Action
	filter Filter
}

// before reports whether h runs before other.
func (h *handler) before(other *handler) bool {
	if h.priority != other.priority {
		return h.priority < other.priority
	}
	return h.seq < other.seq
}

// invocation builds the Invocation passed to the callback.
func (h *handler) invocation(args []any) Invocation {
	return Invocation{
		Hook:      h.hook,
		HandlerID: h.id,
		Receiver:  h.receiver,
		Args:      args,
	}
}

// info returns the exported view of the handler.
func (h *handler) info() HandlerInfo {
	return HandlerInfo{
		ID:          h.id,
		Hook:        h.hook,
		Kind:        h.kind,
		Priority:    h.priority,
		Once:        h.once,
		HasReceiver: h.receiver != nil,
		Seq:         h.seq,
	}
}

// sameCallback reports whether two callbacks refer to the same handler.
//
// Func values compare by closure identity: two closures created by one
// function literal are different callbacks, while the same top-level
// function converted twice is the same one. A method value is a new closure
// each time it is evaluated, so keep the value (or the handler id) to remove
// it later. Other values compare with == when their type is comparable.
func sameCallback(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		if va.IsNil() || vb.IsNil() {
			return false
		}
		return funcData(a) == funcData(b)
	}
	if !va.Type().Comparable() {
		return false
	}
	return a == b
}

// funcData returns the data word of an interface holding a func value. Func
// values are stored directly in the interface, so the word is the closure
// pointer.
func funcData(v any) unsafe.Pointer {
	return (*[2]unsafe.Pointer)(unsafe.Pointer(&v))[1]
}
