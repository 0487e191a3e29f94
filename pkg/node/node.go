package node

import (
	"fmt"
	"time"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/config"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/snmt"
	"github.com/samsamfire/goopensafety/pkg/sod"
	"github.com/samsamfire/goopensafety/pkg/spdo"
	log "github.com/sirupsen/logrus"
)

// Number of error reports kept in history
const DefaultHistorySize = 32

// A [Node] handles the safety stack of one safety node.
// It owns the SOD, the error sink, the state machine and the SPDO
// subsystem, all fed by the frames queued in its [opensafety.BusManager].
type Node struct {
	*opensafety.BusManager
	logger     *log.Entry
	od         *sod.ObjectDictionary
	errors     *serr.SERR
	snmt       *snmt.SNMT
	spdo       *spdo.SPDO
	freeFrames uint8
	period     time.Duration
	timeBase   time.Duration
}

func spdoConfig(conf config.SpdoConfig) spdo.Config {
	return spdo.Config{
		MaxRxSpdo:          conf.MaxRx,
		MaxTxSpdo:          conf.MaxTx,
		MaxPayloadLength:   conf.MaxPayloadLength,
		ExtendedCT:         conf.ExtendedCT,
		MaxNotAnsweredTReq: conf.MaxNotAnsweredTReq,
	}
}

// Create a new [Node]. The configuration overrides are written into
// odict before anything else. A nil configuration uses the defaults.
func NewNode(
	bm *opensafety.BusManager,
	odict *sod.ObjectDictionary,
	cfg *config.Config,
	logger *log.Logger,
) (*Node, error) {
	if bm == nil || odict == nil {
		return nil, opensafety.ErrIllegalArgument
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	normalized := *cfg
	normalized.Normalize()
	if logger == nil {
		logger = log.StandardLogger()
	}
	err := config.NewSODConfigurator(odict, logger).Apply(&normalized)
	if err != nil {
		return nil, fmt.Errorf("applying configuration : %w", err)
	}

	node := &Node{
		BusManager: bm,
		od:         odict,
		errors:     serr.New(logger, DefaultHistorySize),
		freeFrames: normalized.Node.FreeFrames,
		period:     normalized.Node.Period,
		timeBase:   normalized.Node.TimeBase,
	}
	node.spdo = spdo.New(odict, node.errors, bm, spdoConfig(normalized.Spdo), logger)
	node.snmt, err = snmt.NewSNMT(node.spdo, node.errors, normalized.Node.StartupOperational, logger)
	if err != nil {
		return nil, err
	}
	address, _ := node.Configurator().ReadAddress()
	node.logger = logger.WithFields(log.Fields{"service": "[NODE]", "sadr": address})
	node.snmt.OnStateChange(func(state snmt.State) {
		node.logger.Infof("node is now %v", state)
	})
	return node, nil
}

// Process runs one tick of the stack : state machine, reception of
// every queued frame, transmission within the free frame budget and
// finally the safety control timeouts.
func (node *Node) Process(now uint32) snmt.State {
	state := node.snmt.Process(now)
	node.Drain(func(frame []byte) {
		node.spdo.ProcessRxFrame(now, frame)
	})
	node.spdo.BuildTxFrames(now, node.freeFrames)
	node.spdo.CheckRxTimeout(now)
	return state
}

func (node *Node) GetSOD() *sod.ObjectDictionary {
	return node.od
}

func (node *Node) Errors() *serr.SERR {
	return node.errors
}

func (node *Node) SNMT() *snmt.SNMT {
	return node.snmt
}

func (node *Node) SPDO() *spdo.SPDO {
	return node.spdo
}

// Processing period and duration of one tick
func (node *Node) Timing() (period time.Duration, timeBase time.Duration) {
	return node.period, node.timeBase
}

func (node *Node) Configurator() *config.SODConfigurator {
	return config.NewSODConfigurator(node.od, nil)
}
