package rpc

import (
	"github.com/dolthub/swiss"
)

// Record describes a request that is waiting for its response
type Record struct {
	UUID    uint32
	Name    string
	Tag     byte
	Created uint64
}

type recordSlot struct {
	Record
	available bool
}

// recordTable is a fixed set of request slots indexed by uuid
type recordTable struct {
	slots   []recordSlot
	byUUID  *swiss.Map[uint32, int]
	pending int
}

func newRecordTable(capacity int) *recordTable {
	table := &recordTable{
		slots: make([]recordSlot, capacity),
	}
	table.reset()

	return table
}

func (t *recordTable) reset() {
	for i := range t.slots {
		t.slots[i] = recordSlot{available: true}
	}
	t.byUUID = swiss.NewMap[uint32, int](uint32(len(t.slots)))
	t.pending = 0
}

func (t *recordTable) capacity() int {
	return len(t.slots)
}

// freeSlot returns the index of the first available slot, or -1 if every slot is pending
func (t *recordTable) freeSlot() int {
	for i := range t.slots {
		if t.slots[i].available {
			return i
		}
	}
	return -1
}

func (t *recordTable) occupy(slot int, record Record) {
	t.slots[slot] = recordSlot{Record: record}
	t.byUUID.Put(record.UUID, slot)
	t.pending++
}

func (t *recordTable) release(slot int) Record {
	record := t.slots[slot].Record
	t.byUUID.Delete(record.UUID)
	t.slots[slot] = recordSlot{available: true}
	t.pending--

	return record
}

func (t *recordTable) find(uuid uint32) (int, bool) {
	return t.byUUID.Get(uuid)
}

// expire releases every record created more than wait ticks before now and hands each one
// to visit
func (t *recordTable) expire(now, wait uint64, visit func(record Record)) {
	for i := range t.slots {
		slot := &t.slots[i]
		if slot.available || now < slot.Created || now-slot.Created <= wait {
			continue
		}

		visit(t.release(i))
	}
}

func (t *recordTable) snapshot() []Record {
	records := make([]Record, 0, t.pending)
	for i := range t.slots {
		if !t.slots[i].available {
			records = append(records, t.slots[i].Record)
		}
	}
	return records
}
