package spdo

import (
	"testing"

	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/sod"
	"github.com/stretchr/testify/assert"
)

func responseFrame(tr uint8, target uint16, ct uint16) *frame.Frame {
	f := frame.New(frame.IDTimeResponse, testDomain, producerAddress, target, []byte{0, 0})
	f.TR = tr
	f.CT = ct
	return f
}

func TestSequenceWindow(t *testing.T) {
	ts := tsyncConsumer{firstSeq: 60, seq: 2}
	assert.True(t, ts.inWindow(60))
	assert.True(t, ts.inWindow(63))
	assert.True(t, ts.inWindow(0))
	assert.True(t, ts.inWindow(1))
	assert.False(t, ts.inWindow(2))
	assert.False(t, ts.inWindow(10))
	assert.False(t, ts.inWindow(59))

	ts = tsyncConsumer{firstSeq: 5, seq: 5}
	assert.False(t, ts.inWindow(5))
}

func TestTimeSyncSuccess(t *testing.T) {
	p, c := newPair(t, 100, DefaultConfig())
	synchronize(t, p, c)
	status := rxState(t, c)
	assert.EqualValues(t, 2, status.PropagationTime)
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTimeSyncOk))
	assert.EqualValues(t, 1, p.errs.Statistic(serr.StatTReqReceived))
	assert.EqualValues(t, 1, p.errs.Statistic(serr.StatTResSent))
	assert.EqualValues(t, 0, c.errs.Reported(serr.ClassMinor))
	assert.EqualValues(t, 0, p.errs.Reported(serr.ClassMinor))
}

func TestTimeSyncResyncKeepsActive(t *testing.T) {
	p, c := newPair(t, 100, DefaultConfig())
	synchronize(t, p, c)
	// Post sync delay of 1000 ticks after the response at tick 2
	p.sender.take()
	c.sender.take()
	c.spdo.BuildTxFrames(1001, 4)
	assert.Len(t, c.sender.ofType(frame.IDTimeRequest), 0)

	// Keep the consumer alive meanwhile
	p.spdo.BuildTxFrames(1000, 4)
	assert.Equal(t, 1, deliver(p, c, 1001))
	c.sender.take()

	c.spdo.BuildTxFrames(1002, 4)
	requests := c.sender.ofType(frame.IDTimeRequest)
	assert.Len(t, requests, 1)
	assert.EqualValues(t, 1, requests[0].frame.Sequence())
	assert.True(t, requests[0].frame.ConnectionValid())
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)

	deliver(c, p, 1003)
	p.spdo.BuildTxFrames(1003, 4)
	assert.Equal(t, 1, deliver(p, c, 1004))
	status := rxState(t, c)
	assert.Equal(t, ConsumerActive, status.State)
	assert.Equal(t, TimeSyncWaitNextSync, status.TimeSync)
	assert.EqualValues(t, 2, c.errs.Statistic(serr.StatTimeSyncOk))
}

func TestTimeSyncCycleExpired(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))

	c.spdo.BuildTxFrames(0, 4)
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)

	// Max propagation delay of 20 ticks, block of a single request
	c.spdo.BuildTxFrames(19, 4)
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	c.spdo.BuildTxFrames(20, 4)
	assert.Equal(t, TimeSyncWaitNextBlock, rxState(t, c).TimeSync)

	// Next block after 100 ticks
	c.spdo.BuildTxFrames(119, 4)
	assert.Equal(t, TimeSyncWaitNextBlock, rxState(t, c).TimeSync)
	c.spdo.BuildTxFrames(120, 4)
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	requests := c.sender.ofType(frame.IDTimeRequest)
	assert.Len(t, requests, 2)
	assert.EqualValues(t, 0, requests[0].frame.Sequence())
	assert.EqualValues(t, 1, requests[1].frame.Sequence())

	// Request cycle of 500 ticks
	c.spdo.BuildTxFrames(500, 4)
	assert.Equal(t, TimeSyncSendRequest, rxState(t, c).TimeSync)
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTimeSyncFailed))
	last, ok := c.errs.Last()
	assert.True(t, ok)
	assert.Equal(t, serr.CodeTReqExpired, last.Code)

	c.spdo.BuildTxFrames(501, 4)
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	assert.Len(t, c.sender.ofType(frame.IDTimeRequest), 3)
}

func TestTimeSyncNotAnswered(t *testing.T) {
	config := DefaultConfig()
	config.MaxNotAnsweredTReq = 2
	c := newNode(newConsumerSod(t, 100), config)
	assert.Nil(t, c.spdo.Activate(0))
	c.spdo.BuildTxFrames(0, 4)
	c.spdo.BuildTxFrames(20, 4)
	c.spdo.BuildTxFrames(120, 4)
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	c.spdo.BuildTxFrames(121, 4)
	assert.Equal(t, TimeSyncSendRequest, rxState(t, c).TimeSync)
	last, _ := c.errs.Last()
	assert.Equal(t, serr.CodeTReqNotAnswered, last.Code)
}

func TestTimeSyncNoBudget(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	assert.EqualValues(t, 0, c.spdo.BuildTxFrames(0, 0))
	assert.Equal(t, TimeSyncSendRequest, rxState(t, c).TimeSync)
	assert.Len(t, c.sender.frames, 0)
	assert.EqualValues(t, 0, c.spdo.BuildTxFrames(1, 1))
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	assert.Len(t, c.sender.ofType(frame.IDTimeRequest), 1)
}

func TestTimeRequestBeforeData(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	// Request and data both due on the same TxSPDO
	assert.EqualValues(t, 0, c.spdo.BuildTxFrames(0, 1))
	sent := c.sender.take()
	assert.Len(t, sent, 1)
	assert.Equal(t, frame.IDTimeRequest, sent[0].frame.Type())

	// Data deferred to the next tick
	assert.EqualValues(t, 0, c.spdo.BuildTxFrames(1, 1))
	sent = c.sender.take()
	assert.Len(t, sent, 1)
	assert.Equal(t, frame.IDDataOnly, sent[0].frame.Type())
}

func TestTimeSyncConsecutiveRequests(t *testing.T) {
	od := newConsumerSod(t, 100)
	assert.Nil(t, od.Index(sod.IndexRxSpdoComBase).PutUint8(sod.SubRxNbConsecTReq, 3, false))
	c := newNode(od, DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))

	// One request per tick until the block is complete
	for now := uint32(0); now < 5; now++ {
		c.spdo.BuildTxFrames(now, 4)
	}
	requests := c.sender.ofType(frame.IDTimeRequest)
	assert.Len(t, requests, 3)
	for i, r := range requests {
		assert.EqualValues(t, i, r.frame.Sequence())
	}
	assert.EqualValues(t, 3, c.errs.Statistic(serr.StatTReqSent))
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)

	// Response to the second request, sent at tick 1
	assert.True(t, c.spdo.ProcessFrame(6, responseFrame(1, consumerAddress, 10)))
	status := rxState(t, c)
	assert.Equal(t, TimeSyncWaitNextSync, status.TimeSync)
	assert.Equal(t, ConsumerBaseline, status.State)
	assert.EqualValues(t, 5, status.PropagationTime)
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTimeSyncOk))

	// Late response to the third request does not resynchronize
	c.spdo.ProcessFrame(7, responseFrame(2, consumerAddress, 11))
	assert.EqualValues(t, 5, rxState(t, c).PropagationTime)
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTimeSyncOk))
	assert.EqualValues(t, 0, c.errs.Statistic(serr.StatTResSequence))
	assert.EqualValues(t, 0, c.errs.Reported(serr.ClassMinor))
}

func TestTimeSyncResponseOutOfWindow(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	c.spdo.BuildTxFrames(0, 4)

	assert.False(t, c.spdo.ProcessFrame(2, responseFrame(10, consumerAddress, 1)))
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTResSequence))
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	assert.Equal(t, ConsumerUnsynced, rxState(t, c).State)

	// Response to another consumer of the same producer
	assert.False(t, c.spdo.ProcessFrame(2, responseFrame(0, 0x30, 1)))
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTResWrongTarget))
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)

	assert.True(t, c.spdo.ProcessFrame(2, responseFrame(0, consumerAddress, 1)))
	assert.Equal(t, TimeSyncWaitNextSync, rxState(t, c).TimeSync)
	assert.Equal(t, ConsumerBaseline, rxState(t, c).State)

	// Further responses of the block are ignored
	assert.False(t, c.spdo.ProcessFrame(3, responseFrame(0, consumerAddress, 1)))
	assert.EqualValues(t, 0, c.errs.Statistic(serr.StatTResUnexpected))
}

func TestTimeSyncRoundTripTooShort(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	c.spdo.BuildTxFrames(10, 4)
	// Min TSync propagation delay is 1
	assert.False(t, c.spdo.ProcessFrame(10, responseFrame(0, consumerAddress, 1)))
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTResTooShort))
	assert.Equal(t, TimeSyncSendRequest, rxState(t, c).TimeSync)
	assert.Equal(t, ConsumerUnsynced, rxState(t, c).State)
}

func TestTimeSyncRoundTripTooLong(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	c.spdo.BuildTxFrames(0, 4)
	assert.False(t, c.spdo.ProcessFrame(101, responseFrame(0, consumerAddress, 1)))
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTResTooLate))
	assert.Equal(t, TimeSyncAwaitResponse, rxState(t, c).TimeSync)
	assert.Equal(t, ConsumerUnsynced, rxState(t, c).State)
}

func TestTimeSyncUnexpectedResponse(t *testing.T) {
	c := newNode(newConsumerSod(t, 100), DefaultConfig())
	assert.Nil(t, c.spdo.Activate(0))
	assert.False(t, c.spdo.ProcessFrame(2, responseFrame(0, consumerAddress, 1)))
	assert.EqualValues(t, 1, c.errs.Statistic(serr.StatTResUnexpected))
	assert.Equal(t, TimeSyncSendRequest, rxState(t, c).TimeSync)
	last, _ := c.errs.Last()
	assert.Equal(t, serr.CodeTResUnexpected, last.Code)
}

func TestTimeResponseBlock(t *testing.T) {
	od := newProducerSod(t)
	assert.Nil(t, od.Index(0xC000).PutUint8(3, 2, false))
	p := newNode(od, DefaultConfig())
	assert.Nil(t, p.spdo.Activate(0))
	p.spdo.BuildTxFrames(0, 4)
	p.sender.take()

	request := frame.New(frame.IDTimeRequest, testDomain, consumerAddress, producerAddress, []byte{0, 0})
	request.TR = 33
	assert.True(t, p.spdo.ProcessFrame(1, request))
	// Already answering, ignored without error
	assert.False(t, p.spdo.ProcessFrame(1, request))
	assert.EqualValues(t, 0, p.errs.Reported(serr.ClassMinor))

	p.spdo.BuildTxFrames(1, 4)
	p.spdo.BuildTxFrames(2, 4)
	responses := p.sender.ofType(frame.IDTimeResponse)
	assert.Len(t, responses, 2)
	assert.True(t, responses[0].immediate)
	assert.False(t, responses[1].immediate)
	for _, r := range responses {
		assert.EqualValues(t, 33, r.frame.Sequence())
		assert.Equal(t, consumerAddress, r.frame.Target)
		assert.Equal(t, producerAddress, r.frame.Source)
	}
	status, _ := p.spdo.Tx(0)
	assert.False(t, status.Responding)
	assert.True(t, p.spdo.ProcessFrame(3, request))
}

func TestTimeRequestWithoutResponses(t *testing.T) {
	od := newProducerSod(t)
	assert.Nil(t, od.Index(0xC000).PutUint8(3, 0, false))
	p := newNode(od, DefaultConfig())
	assert.Nil(t, p.spdo.Activate(0))
	request := frame.New(frame.IDTimeRequest, testDomain, consumerAddress, producerAddress, []byte{0, 0})
	assert.False(t, p.spdo.ProcessFrame(1, request))
	last, _ := p.errs.Last()
	assert.Equal(t, serr.CodeTxResponseCountZero, last.Code)
}
