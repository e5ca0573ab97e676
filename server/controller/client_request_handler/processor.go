package client_request_handler

import (
	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
	"seq-aggregator/shared/seqbuffer"
)

// BatchProcessor validates data frames and admits their integers into the
// reassembly buffer
type BatchProcessor struct {
	buffer      *seqbuffer.Buffer
	targetCount int
}

// NewBatchProcessor creates a processor for a job of targetCount slots
func NewBatchProcessor(buffer *seqbuffer.Buffer, targetCount int) *BatchProcessor {
	return &BatchProcessor{buffer: buffer, targetCount: targetCount}
}

// Process handles one data frame and returns the control message to reply with
func (p *BatchProcessor) Process(clientID string, pkg *frame.Package) string {
	header := pkg.Header

	if header.DataType != frame.DataTypeInt {
		middleware.LogWarn(handlerComponent, "Client %s sent %s payload %s, only INT is aggregated",
			clientID, header.DataType, header.Hashcode)
		return frame.MessageReject
	}
	if !pkg.Verify() {
		middleware.LogWarn(handlerComponent, "Client %s payload %s failed the hashcode check", clientID, header.Hashcode)
		return frame.MessageReject
	}

	seq, err := frame.ParseSequenceMessage(header.Message)
	if err != nil {
		middleware.LogWarn(handlerComponent, "Client %s payload %s: %v", clientID, header.Hashcode, err)
		return frame.MessageReject
	}
	count := len(pkg.Ints)
	// Compared without seq+count so a huge seq cannot wrap into range
	if seq < 0 || count > p.targetCount || seq > p.targetCount-count {
		middleware.LogWarn(handlerComponent, "Client %s payload %s starts at seq %d with %d values, outside [0, %d)",
			clientID, header.Hashcode, seq, count, p.targetCount)
		return frame.MessageReject
	}

	if !p.buffer.Fits(count) {
		middleware.LogInfo(handlerComponent, "Buffer full, discarding %d values from client %s (%s)",
			count, clientID, header.Hashcode)
		return frame.MessageDiscard
	}
	// Another producer may fill the gap between Fits and the enqueue
	if !p.buffer.TryEnqueueBatch(seqbuffer.FromRun(seq, pkg.Ints)) {
		middleware.LogInfo(handlerComponent, "Buffer filled concurrently, discarding %d values from client %s (%s)",
			count, clientID, header.Hashcode)
		return frame.MessageDiscard
	}

	middleware.LogDebug(handlerComponent, "Client %s: buffered %d values at seq %d", clientID, count, seq)
	return frame.MessageAck
}
