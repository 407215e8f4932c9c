package gateway

import (
	"corpfeed/internal/ingestor"
	"corpfeed/internal/queue"
	"corpfeed/internal/writer"
)

// Pipeline exposes live ingest state to the status endpoint.
type Pipeline interface {
	Workers() []ingestor.WorkerStatus
	QueueDepth() int
	QueueDrops() int64
	WriterStats() writer.Stats
}

// LivePipeline adapts the running manager, queue, and writer.
type LivePipeline struct {
	manager *ingestor.Manager
	queue   *queue.Queue
	writer  *writer.Writer
}

func NewPipeline(m *ingestor.Manager, q *queue.Queue, w *writer.Writer) *LivePipeline {
	return &LivePipeline{manager: m, queue: q, writer: w}
}

func (p *LivePipeline) Workers() []ingestor.WorkerStatus {
	return p.manager.Statuses()
}

func (p *LivePipeline) QueueDepth() int {
	return p.queue.Depth()
}

func (p *LivePipeline) QueueDrops() int64 {
	return p.queue.Drops()
}

func (p *LivePipeline) WriterStats() writer.Stats {
	return p.writer.Stats()
}
