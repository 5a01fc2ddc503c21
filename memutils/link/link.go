// Package link provides the intrusive, circular, sentinel-headed doubly linked list that every
// list in memutils is built on: arena free and allocated lists, descriptor pool free lists,
// queue item lists and rpc observer lists.
//
// A Node is both the link and the record that owns it: the record lives in Value, so
// recovering the owner from a link is a field access rather than offset arithmetic. A list is
// identified by a head Node whose Value is unused. An unlinked Node points at itself.
package link

// Node is a link in a circular doubly linked list, carrying a record of type T
type Node[T any] struct {
	next  *Node[T]
	prev  *Node[T]
	Value T
}

// Init turns the node into an empty list head / unlinked node by pointing it at itself
func (n *Node[T]) Init() *Node[T] {
	n.next = n
	n.prev = n
	return n
}

// New allocates a node that is already initialized
func New[T any](value T) *Node[T] {
	n := &Node[T]{Value: value}
	return n.Init()
}

func (n *Node[T]) lazyInit() {
	if n.next == nil {
		n.Init()
	}
}

// Next returns the node following n. On the last node of a list it returns the list head.
func (n *Node[T]) Next() *Node[T] {
	n.lazyInit()
	return n.next
}

// Prev returns the node before n. On the first node of a list it returns the list head.
func (n *Node[T]) Prev() *Node[T] {
	n.lazyInit()
	return n.prev
}

// IsLinked returns true if the node is part of a cycle with at least one other node
func (n *Node[T]) IsLinked() bool {
	return n.next != nil && n.next != n
}

// Append splices newNode into the list directly after the node after. newNode must not be
// linked into any list.
func Append[T any](newNode, after *Node[T]) {
	after.lazyInit()
	newNode.lazyInit()
	if newNode.IsLinked() {
		panic("attempted to append a node that is already part of a list")
	}

	newNode.next = after.next
	newNode.prev = after
	after.next.prev = newNode
	after.next = newNode
}

// Unlink splices n out of whatever list it is in and leaves it self-referential. Unlinking an
// unlinked node does nothing.
func (n *Node[T]) Unlink() {
	if !n.IsLinked() {
		n.lazyInit()
		return
	}

	n.prev.next = n.next
	n.next.prev = n.prev
	n.Init()
}

// PushFront adds n as the first node of the list headed by head
func (head *Node[T]) PushFront(n *Node[T]) {
	Append(n, head)
}

// PushBack adds n as the last node of the list headed by head
func (head *Node[T]) PushBack(n *Node[T]) {
	head.lazyInit()
	Append(n, head.prev)
}

// IsEmpty returns true if the list headed by head has no nodes
func (head *Node[T]) IsEmpty() bool {
	return !head.IsLinked()
}

// Front returns the first node of the list headed by head, or nil if the list is empty
func (head *Node[T]) Front() *Node[T] {
	if head.IsEmpty() {
		return nil
	}
	return head.next
}

// Back returns the last node of the list headed by head, or nil if the list is empty
func (head *Node[T]) Back() *Node[T] {
	if head.IsEmpty() {
		return nil
	}
	return head.prev
}

// PopFront unlinks and returns the first node of the list headed by head, or nil if the list
// is empty
func (head *Node[T]) PopFront() *Node[T] {
	n := head.Front()
	if n != nil {
		n.Unlink()
	}
	return n
}

// Size counts the nodes in the list headed by head
func (head *Node[T]) Size() int {
	count := 0
	for it := head.Iter(); it.Next(); {
		count++
	}
	return count
}

// Contains returns true if node is part of the list headed by head
func (head *Node[T]) Contains(node *Node[T]) bool {
	if node == nil {
		return false
	}

	for it := head.Iter(); it.Next(); {
		if it.Node() == node {
			return true
		}
	}
	return false
}

// ForEach calls visit for each node in the list headed by head, front to back, until visit
// returns false. visit may unlink the node it was handed.
func (head *Node[T]) ForEach(visit func(node *Node[T]) bool) {
	for it := head.Iter(); it.Next(); {
		if !visit(it.Node()) {
			return
		}
	}
}

// Iter starts a forward traversal of the list headed by head. Each call produces a fresh
// iterator.
func (head *Node[T]) Iter() Iterator[T] {
	head.lazyInit()
	return Iterator[T]{head: head, next: head.next}
}

// Iterator is a lazy forward traversal over a list. While the current node is handed out,
// any node may be unlinked. If the current node stays linked the traversal continues from
// its live successor; otherwise it continues from the successor captured before the node
// was handed out. If that successor has been unlinked as well, the traversal ends.
type Iterator[T any] struct {
	head *Node[T]
	cur  *Node[T]
	next *Node[T]
}

// Next advances the iterator and returns false once the traversal is back at the head
func (it *Iterator[T]) Next() bool {
	if it.head == nil {
		return false
	}
	if it.cur != nil && it.cur.IsLinked() {
		it.next = it.cur.next
	}
	if it.next == it.head || !it.next.IsLinked() {
		it.cur = nil
		return false
	}

	it.cur = it.next
	it.next = it.cur.next
	return true
}

// Node returns the node the iterator is positioned on
func (it *Iterator[T]) Node() *Node[T] {
	return it.cur
}
