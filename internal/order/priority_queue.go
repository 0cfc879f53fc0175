package order

import (
	"factory-scheduler/internal/types"
)

// Item 是优先级队列中的元素，包装了一条确定请求
type Item struct {
	Request types.ConfirmRequest
	index   int // 元素在堆中的索引
}

// PriorityQueue 实现了 heap.Interface 接口，是一个基于最小堆的优先级队列
// 希望交期越早越先出队，没有希望交期的排在最后，同交期按订单 ID 升序
type PriorityQueue []*Item

func (pq PriorityQueue) Len() int { return len(pq) }

// Less 定义了元素的排序规则
func (pq PriorityQueue) Less(i, j int) bool {
	a, b := pq[i].Request, pq[j].Request
	switch {
	case a.Deadline.IsZero() != b.Deadline.IsZero():
		return b.Deadline.IsZero()
	case !a.Deadline.Equal(b.Deadline):
		return a.Deadline.Before(b.Deadline)
	default:
		return a.OrderID < b.OrderID
	}
}

// Swap 交换两个元素的位置
func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push 向队列中添加元素
func (pq *PriorityQueue) Push(x any) {
	item := x.(*Item)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

// Pop 从队列中移除并返回优先级最高的元素
func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
