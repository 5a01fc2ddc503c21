package link_test

import (
	"testing"

	"github.com/QuangHaiNguyen/EasyEmbeddedFramework-sub001/memutils/link"
	"github.com/stretchr/testify/require"
)

func values(head *link.Node[int]) []int {
	var out []int
	head.ForEach(func(node *link.Node[int]) bool {
		out = append(out, node.Value)
		return true
	})
	return out
}

func TestInitIsSelfLoop(t *testing.T) {
	var head link.Node[int]
	head.Init()

	require.True(t, head.IsEmpty())
	require.False(t, head.IsLinked())
	require.Equal(t, &head, head.Next())
	require.Equal(t, &head, head.Prev())
	require.Equal(t, 0, head.Size())
	require.Nil(t, head.Front())
	require.Nil(t, head.Back())
}

func TestZeroValueHeadIsUsable(t *testing.T) {
	var head link.Node[int]
	head.PushBack(link.New(1))
	head.PushBack(link.New(2))

	require.Equal(t, []int{1, 2}, values(&head))
}

func TestPushFrontAndBack(t *testing.T) {
	head := link.New(0)
	head.PushBack(link.New(2))
	head.PushFront(link.New(1))
	head.PushBack(link.New(3))

	require.Equal(t, []int{1, 2, 3}, values(head))
	require.Equal(t, 3, head.Size())
	require.Equal(t, 1, head.Front().Value)
	require.Equal(t, 3, head.Back().Value)
}

func TestAppendAfterMiddle(t *testing.T) {
	head := link.New(0)
	first := link.New(1)
	third := link.New(3)
	head.PushBack(first)
	head.PushBack(third)

	link.Append(link.New(2), first)

	require.Equal(t, []int{1, 2, 3}, values(head))
	require.Equal(t, first, third.Prev().Prev())
}

func TestAppendLinkedNodePanics(t *testing.T) {
	head := link.New(0)
	node := link.New(1)
	head.PushBack(node)

	require.Panics(t, func() {
		link.Append(node, head)
	})
}

func TestUnlink(t *testing.T) {
	head := link.New(0)
	nodes := []*link.Node[int]{link.New(1), link.New(2), link.New(3)}
	for _, n := range nodes {
		head.PushBack(n)
	}

	nodes[1].Unlink()

	require.Equal(t, []int{1, 3}, values(head))
	require.False(t, nodes[1].IsLinked())
	require.Equal(t, nodes[1], nodes[1].Next())
	require.False(t, head.Contains(nodes[1]))
	require.True(t, head.Contains(nodes[0]))
	require.True(t, head.Contains(nodes[2]))

	// unlinking twice is harmless
	nodes[1].Unlink()
	require.Equal(t, 2, head.Size())
}

func TestPopFront(t *testing.T) {
	head := link.New(0)
	head.PushBack(link.New(1))
	head.PushBack(link.New(2))

	require.Equal(t, 1, head.PopFront().Value)
	require.Equal(t, 2, head.PopFront().Value)
	require.Nil(t, head.PopFront())
	require.True(t, head.IsEmpty())
}

func TestIteratorToleratesUnlinkingCurrent(t *testing.T) {
	head := link.New(0)
	for i := 1; i <= 6; i++ {
		head.PushBack(link.New(i))
	}

	for it := head.Iter(); it.Next(); {
		if it.Node().Value%2 == 0 {
			it.Node().Unlink()
		}
	}

	require.Equal(t, []int{1, 3, 5}, values(head))
}

func TestIteratorToleratesUnlinkingSuccessor(t *testing.T) {
	head := link.New(0)
	nodes := make([]*link.Node[int], 5)
	for i := range nodes {
		nodes[i] = link.New(i + 1)
		head.PushBack(nodes[i])
	}

	var seen []int
	for it := head.Iter(); it.Next(); {
		seen = append(seen, it.Node().Value)
		if it.Node().Value == 2 {
			nodes[2].Unlink()
		}
	}

	require.Equal(t, []int{1, 2, 4, 5}, seen)
	require.Equal(t, []int{1, 2, 4, 5}, values(head))
}

func TestIteratorEndsWhenCurrentAndSuccessorAreUnlinked(t *testing.T) {
	head := link.New(0)
	nodes := make([]*link.Node[int], 4)
	for i := range nodes {
		nodes[i] = link.New(i + 1)
		head.PushBack(nodes[i])
	}

	var seen []int
	for it := head.Iter(); it.Next(); {
		seen = append(seen, it.Node().Value)
		if it.Node().Value == 2 {
			nodes[2].Unlink()
			nodes[1].Unlink()
		}
	}

	require.Equal(t, []int{1, 2}, seen)
	require.Equal(t, []int{1, 4}, values(head))
}

func TestIteratorIsRestartable(t *testing.T) {
	head := link.New(0)
	head.PushBack(link.New(1))
	head.PushBack(link.New(2))

	first := head.Iter()
	require.True(t, first.Next())
	require.Equal(t, 1, first.Node().Value)

	second := head.Iter()
	require.True(t, second.Next())
	require.Equal(t, 1, second.Node().Value)
	require.True(t, second.Next())
	require.True(t, first.Next())
	require.Equal(t, 2, first.Node().Value)
	require.False(t, first.Next())
	require.Nil(t, first.Node())
}

func TestForEachStopsEarly(t *testing.T) {
	head := link.New(0)
	for i := 1; i <= 5; i++ {
		head.PushBack(link.New(i))
	}

	var seen []int
	head.ForEach(func(node *link.Node[int]) bool {
		seen = append(seen, node.Value)
		return node.Value < 3
	})

	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestContainsNil(t *testing.T) {
	head := link.New(0)
	require.False(t, head.Contains(nil))
}
