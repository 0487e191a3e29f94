package spdo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/sod"
	"github.com/stretchr/testify/assert"
)

const (
	producerAddress = uint16(0x10)
	consumerAddress = uint16(0x20)
	testDomain      = uint16(1)
)

type sentFrame struct {
	raw       []byte
	frame     *frame.Frame
	immediate bool
}

type captureSender struct {
	fail   bool
	frames []sentFrame
}

func (c *captureSender) Send(data []byte, immediate bool) error {
	if c.fail {
		return errors.New("send failed")
	}
	f, err := frame.Decode(data)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, sentFrame{raw: data, frame: f, immediate: immediate})
	return nil
}

func (c *captureSender) take() []sentFrame {
	frames := c.frames
	c.frames = nil
	return frames
}

func (c *captureSender) ofType(id uint8) []sentFrame {
	var frames []sentFrame
	for _, f := range c.frames {
		if f.frame.Type() == id {
			frames = append(frames, f)
		}
	}
	return frames
}

type testNode struct {
	od     *sod.ObjectDictionary
	errs   *serr.SERR
	sender *captureSender
	spdo   *SPDO
}

func newNode(od *sod.ObjectDictionary, config Config) *testNode {
	errs := serr.New(nil, 64)
	sender := &captureSender{}
	return &testNode{
		od:     od,
		errs:   errs,
		sender: sender,
		spdo:   New(od, errs, sender, config, nil),
	}
}

// deliver passes every frame sent by from to the SPDO of to
func deliver(from *testNode, to *testNode, now uint32) int {
	accepted := 0
	for _, f := range from.sender.take() {
		if to.spdo.ProcessRxFrame(now, f.raw) {
			accepted++
		}
	}
	return accepted
}

// SOD with common parameters and process data, but no SPDO
func newTestSod(sadr uint16) *sod.ObjectDictionary {
	od := sod.NewSOD()
	common := sod.NewRecord()
	common.AddSubObject(0, "Highest sub-index supported", sod.UNSIGNED8, sod.AttributeR, "2")
	common.AddSubObject(sod.SubCommonSdn, "SDN", sod.UNSIGNED16, sod.AttributeRw, fmt.Sprint(testDomain))
	common.AddSubObject(sod.SubCommonSadr, "SADR", sod.UNSIGNED16, sod.AttributeRw, fmt.Sprint(sadr))
	od.AddVariableList(sod.IndexCommonComParameters, "Common communication parameters", common)

	inputs := sod.NewArray()
	outputs := sod.NewArray()
	for i := uint8(1); i <= 4; i++ {
		inputs.AddSubObject(i, fmt.Sprintf("Safe input %d", i), sod.UNSIGNED8, sod.AttributeRw|sod.AttributeRxSpdo, "0")
		outputs.AddSubObject(i, fmt.Sprintf("Safe output %d", i), sod.UNSIGNED8, sod.AttributeRw|sod.AttributeTxSpdo, "0")
	}
	od.AddVariableList(0x6000, "Safe inputs", inputs)
	od.AddVariableList(0x6200, "Safe outputs", outputs)
	od.AddVariableType(0x6400, "Diagnostic", sod.UNSIGNED32, sod.AttributeR, "0")
	return od
}

var twoOutputs = []uint32{sod.MappingValue(0x6200, 1, 8), sod.MappingValue(0x6200, 2, 8)}
var twoInputs = []uint32{sod.MappingValue(0x6000, 1, 8), sod.MappingValue(0x6000, 2, 8)}

func newProducerSod(t *testing.T) *sod.ObjectDictionary {
	od := newTestSod(producerAddress)
	assert.Nil(t, od.AddTxSpdo(1, producerAddress))
	assert.Nil(t, od.SetMapping(sod.IndexTxSpdoMappingBase, twoOutputs))
	return od
}

func newConsumerSod(t *testing.T, sct uint32) *sod.ObjectDictionary {
	od := newTestSod(consumerAddress)
	assert.Nil(t, od.AddRxSpdo(1, producerAddress, sct, 1))
	assert.Nil(t, od.SetMapping(sod.IndexRxSpdoMappingBase, twoInputs))
	assert.Nil(t, od.AddTxSpdo(1, consumerAddress))
	assert.Nil(t, od.SetMapping(sod.IndexTxSpdoMappingBase, twoOutputs))
	return od
}

func outputs(t *testing.T, od *sod.ObjectDictionary, values ...uint8) {
	for i, v := range values {
		variable, err := od.Variable(0x6200, uint8(i+1))
		assert.Nil(t, err)
		variable.WriteFrom([]byte{v})
	}
}

func input(t *testing.T, od *sod.ObjectDictionary, sub uint8) uint8 {
	variable, err := od.Variable(0x6000, sub)
	assert.Nil(t, err)
	return variable.Bytes()[0]
}

func rxState(t *testing.T, node *testNode) RxStatus {
	status, ok := node.spdo.Rx(0)
	assert.True(t, ok)
	return status
}

// Producer and consumer, both activated at tick 0
func newPair(t *testing.T, sct uint32, config Config) (p *testNode, c *testNode) {
	p = newNode(newProducerSod(t), config)
	c = newNode(newConsumerSod(t, sct), config)
	assert.Nil(t, p.spdo.Activate(0))
	assert.Nil(t, c.spdo.Activate(0))
	return p, c
}

// synchronize runs a time synchronization from tick 0 then delivers one
// data frame at tick 3. The consumer is then active with its SCT
// deadline at 3 + sct - 1.
func synchronize(t *testing.T, p *testNode, c *testNode) {
	c.spdo.BuildTxFrames(0, 4)
	assert.Len(t, c.sender.ofType(frame.IDTimeRequest), 1)
	deliver(c, p, 1)
	p.spdo.BuildTxFrames(1, 4)
	assert.Len(t, p.sender.ofType(frame.IDTimeResponse), 1)
	deliver(p, c, 2)
	assert.Equal(t, ConsumerBaseline, rxState(t, c).State)
	assert.Equal(t, TimeSyncWaitNextSync, rxState(t, c).TimeSync)
	p.spdo.BuildTxFrames(3, 4)
	assert.Equal(t, 1, deliver(p, c, 3))
	assert.Equal(t, ConsumerActive, rxState(t, c).State)
}
