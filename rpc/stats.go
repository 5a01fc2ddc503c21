package rpc

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Stats counts an engine's traffic since it was created
type Stats struct {
	BytesSent     int
	FramesSent    int
	BytesReceived int

	RequestsCreated  int
	ResponsesCreated int

	FramesReceived    int
	RequestsServed    int
	ResponsesReceived int
	Timeouts          int

	AllocationFailures int
	FormatErrors       int
	ChecksumMismatches int
	UnmatchedServices  int
	UnmatchedRecords   int
}

// DroppedFrames is the number of inbound frames discarded for any reason
func (s Stats) DroppedFrames() int {
	return s.AllocationFailures + s.FormatErrors + s.ChecksumMismatches + s.UnmatchedServices + s.UnmatchedRecords
}

// Stats returns a copy of the engine's counters
func (e *Engine) Stats() Stats {
	return e.stats
}

// WriteStatsJSON populates a json object with the engine's counters, its pending records and
// the state of both queues
func (e *Engine) WriteStatsJSON(json *jwriter.ObjectState) {
	json.Name("BytesSent").Int(e.stats.BytesSent)
	json.Name("FramesSent").Int(e.stats.FramesSent)
	json.Name("BytesReceived").Int(e.stats.BytesReceived)
	json.Name("RequestsCreated").Int(e.stats.RequestsCreated)
	json.Name("ResponsesCreated").Int(e.stats.ResponsesCreated)
	json.Name("FramesReceived").Int(e.stats.FramesReceived)
	json.Name("RequestsServed").Int(e.stats.RequestsServed)
	json.Name("ResponsesReceived").Int(e.stats.ResponsesReceived)
	json.Name("Timeouts").Int(e.stats.Timeouts)
	json.Name("DroppedFrames").Int(e.stats.DroppedFrames())
	json.Name("Services").Int(e.services.count())
	json.Name("Observers").Int(e.notifier.count())
	json.Name("ReceivingFrame").Bool(e.deserializer.inProgress())

	records := json.Name("PendingRecords").Array()
	for _, record := range e.records.snapshot() {
		obj := records.Object()
		obj.Name("UUID").Int(int(record.UUID))
		obj.Name("Name").String(record.Name)
		obj.Name("Tag").Int(int(record.Tag))
		obj.Name("Created").Float64(float64(record.Created))
		obj.End()
	}
	records.End()

	pool := json.Name("DescriptorPool").Object()
	pool.Name("Capacity").Int(e.pool.Capacity())
	pool.Name("InUse").Int(e.pool.InUse())
	pool.End()

	tx := json.Name("TransmitQueue").Object()
	e.tx.WriteJSON(&tx)
	tx.End()

	rx := json.Name("ReceiveQueue").Object()
	e.rx.WriteJSON(&rx)
	rx.End()
}
