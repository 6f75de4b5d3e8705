// Package list implements a generic intrusive doubly-linked list.
//
// Unlike container/list, the link fields live inside the element type
// itself (the embedder's struct embeds Elem[T]), so pushing and removing
// an element never allocates and never boxes the element in an
// interface{}. The all-connections, default/custom timeout and header
// field lists in this module are list.Lists of the relevant element type
// linked this way; decoded POST fields are kept in a plain slice.
package list

// Elem is the embeddable link. A type T that wants to live in a List
// embeds Elem[T] (by value); the embedding promotes the unexported link
// method needed to satisfy linked[T], so callers never implement it
// themselves.
type Elem[T any] struct {
	next, prev *T
	owner      *List[T]
}

func (e *Elem[T]) link() *Elem[T] { return e }

// linked is satisfied by any *T that embeds Elem[T].
type linked[T any] interface {
	*T
	link() *Elem[T]
}

// List is an intrusive doubly-linked list of *T. The zero value is an
// empty list ready to use.
type List[T any] struct {
	head, tail *T
	len        int
}

// Len returns the number of elements currently linked into l.
func (l *List[T]) Len() int { return l.len }

// Front returns the head element, or nil if l is empty.
func (l *List[T]) Front() *T { return l.head }

// Back returns the tail element, or nil if l is empty.
func (l *List[T]) Back() *T { return l.tail }

// PushBack links e at the tail of l. If e already belongs to a list it is
// unlinked from it first.
func PushBack[T any, PT linked[T]](l *List[T], e PT) {
	Remove[T, PT](e.link().owner, e)
	le := e.link()
	le.owner = l
	le.next = nil
	le.prev = l.tail
	if l.tail == nil {
		l.head = (*T)(e)
	} else {
		PT(l.tail).link().next = (*T)(e)
	}
	l.tail = (*T)(e)
	l.len++
}

// PushFront links e at the head of l. If e already belongs to a list it is
// unlinked from it first.
func PushFront[T any, PT linked[T]](l *List[T], e PT) {
	Remove[T, PT](e.link().owner, e)
	le := e.link()
	le.owner = l
	le.prev = nil
	le.next = l.head
	if l.head == nil {
		l.tail = (*T)(e)
	} else {
		PT(l.head).link().prev = (*T)(e)
	}
	l.head = (*T)(e)
	l.len++
}

// Remove unlinks e from l. A no-op if l is nil or e does not currently
// belong to l.
func Remove[T any, PT linked[T]](l *List[T], e PT) {
	if l == nil || e == nil {
		return
	}
	le := e.link()
	if le.owner != l {
		return
	}
	if le.prev != nil {
		PT(le.prev).link().next = le.next
	} else {
		l.head = le.next
	}
	if le.next != nil {
		PT(le.next).link().prev = le.prev
	} else {
		l.tail = le.prev
	}
	le.next, le.prev, le.owner = nil, nil, nil
	l.len--
}

// MoveToFront unlinks e (if linked anywhere) and relinks it at the head of
// l. Used by the default-timeout list to keep entries ordered by last
// activity without allocating.
func MoveToFront[T any, PT linked[T]](l *List[T], e PT) {
	PushFront[T, PT](l, e)
}

// Next returns the element following e, or nil at the tail.
func Next[T any, PT linked[T]](e PT) *T { return e.link().next }

// Prev returns the element preceding e, or nil at the head.
func Prev[T any, PT linked[T]](e PT) *T { return e.link().prev }

// In reports whether e currently belongs to l.
func In[T any, PT linked[T]](l *List[T], e PT) bool { return e.link().owner == l }
