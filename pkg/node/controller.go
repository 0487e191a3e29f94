package node

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// [NodeProcessor] is responsible for handling the node
// internal safety stack processing.
type NodeProcessor struct {
	logger *log.Entry
	node   *Node
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	start  time.Time
}

func NewNodeProcessor(n *Node, logger *log.Logger) *NodeProcessor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &NodeProcessor{
		logger: logger.WithField("service", "[CTRLR]"),
		node:   n,
		wg:     &sync.WaitGroup{},
	}
}

// Tick converts a wall clock time into the stack time base.
// Ticks wrap around, the stack only compares them relatively.
func (c *NodeProcessor) Tick(t time.Time) uint32 {
	_, timeBase := c.node.Timing()
	return uint32(uint64(t.Sub(c.start) / timeBase))
}

// Main node processing
func (c *NodeProcessor) main(ctx context.Context) {
	period, _ := c.node.Timing()
	ticker := time.NewTicker(period)
	c.logger.Infof("starting node main process, period %v", period)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("exited node main process")
			ticker.Stop()
			return
		case t := <-ticker.C:
			c.node.Process(c.Tick(t))
		}
	}
}

// Start node processing, this will be run inside of a go routine
// Call Stop() to stop processing or cancel the context
// Call Wait() to wait for end of execution
func (c *NodeProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.start = time.Now()
	// First tick right away, e.g. to leave initialization
	c.node.Process(0)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.main(ctx)
	}()
	return nil
}

// Stop node processing.
// Wait should be called in order to make sure that processing has stopped
func (c *NodeProcessor) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Wait for processing to finish (blocking)
func (c *NodeProcessor) Wait() error {
	c.wg.Wait()
	return nil
}

// Get underlying [Node] object
func (c *NodeProcessor) GetNode() *Node {
	return c.node
}

// Run processes the node until ctx is cancelled
func (node *Node) Run(ctx context.Context) error {
	processor := NewNodeProcessor(node, nil)
	err := processor.Start(ctx)
	if err != nil {
		return err
	}
	return processor.Wait()
}
