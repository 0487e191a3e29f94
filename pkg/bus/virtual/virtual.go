package virtual

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/bus"
	log "github.com/sirupsen/logrus"
)

// Virtual bus implementation with TCP primarily used for testing
// This needs a broker server relaying frames to all connected clients
// Every frame is sent as a 4 byte big endian length followed by the raw frame

func init() {
	bus.RegisterInterface("virtual", NewVirtualBus)
}

const (
	headerSize   = 4
	MaxFrameSize = 1024
	pollTimeout  = 200 * time.Millisecond
	writeTimeout = 10 * time.Millisecond
)

var ErrNotConnected = errors.New("no active connection")

type VirtualBus struct {
	logger       *log.Entry
	mu           sync.Mutex
	channel      string
	conn         net.Conn
	receiveOwn   bool
	framehandler opensafety.FrameListener
	stopChan     chan bool
	wg           sync.WaitGroup
	isRunning    bool
}

func NewVirtualBus(channel string) (opensafety.Bus, error) {
	return &VirtualBus{
		channel:  channel,
		stopChan: make(chan bool),
		logger:   log.WithFields(log.Fields{"service": "[VIRTUAL]", "channel": channel}),
	}, nil
}

// Helper function for serializing a raw frame into the expected binary format
func serializeFrame(frame []byte) ([]byte, error) {
	if len(frame) > MaxFrameSize {
		return nil, fmt.Errorf("frame of %v bytes exceeds %v", len(frame), MaxFrameSize)
	}
	frameBytes := make([]byte, headerSize+len(frame))
	binary.BigEndian.PutUint32(frameBytes, uint32(len(frame)))
	copy(frameBytes[headerSize:], frame)
	return frameBytes, nil
}

// "Connect" to server e.g. localhost:18000
func (b *VirtualBus) Connect(...any) error {
	conn, err := net.Dial("tcp", b.channel)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		err := tcpConn.SetNoDelay(true)
		if err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = conn
	if b.framehandler != nil {
		b.startReception()
	}
	b.logger.Debug("connected")
	return nil
}

// "Disconnect" from server
func (b *VirtualBus) Disconnect() error {
	b.mu.Lock()
	running := b.isRunning
	b.mu.Unlock()
	if running {
		b.stopChan <- true
		b.wg.Wait()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}

// "Send" implementation of Bus interface
func (b *VirtualBus) Send(frame []byte) error {
	b.mu.Lock()
	conn := b.conn
	handler := b.framehandler
	receiveOwn := b.receiveOwn
	b.mu.Unlock()

	// Local loopback
	if receiveOwn && handler != nil {
		handler.Handle(frame)
	} else if conn == nil {
		return ErrNotConnected
	}
	if conn == nil {
		return nil
	}
	frameBytes, err := serializeFrame(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(frameBytes)
	return err
}

// "Subscribe" implementation of Bus interface
func (b *VirtualBus) Subscribe(framehandler opensafety.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	if b.conn != nil {
		b.startReception()
	}
	return nil
}

// Start go routine that receives incoming traffic and passes it to frameHandler
func (b *VirtualBus) startReception() {
	if b.isRunning {
		return
	}
	b.wg.Add(1)
	b.isRunning = true
	go b.handleReception(b.conn)
}

// readFull fills buf, waiting for data until stopped.
// Returns false if stopped.
func (b *VirtualBus) readFull(conn net.Conn, buf []byte) (bool, error) {
	read := 0
	for read < len(buf) {
		select {
		case <-b.stopChan:
			return false, nil
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, err := io.ReadFull(conn, buf[read:])
		read += n
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// No data received, this is OK
			continue
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// Recv reads the next frame from the connection
func (b *VirtualBus) Recv(conn net.Conn) ([]byte, bool, error) {
	header := make([]byte, headerSize)
	ok, err := b.readFull(conn, header)
	if !ok || err != nil {
		return nil, ok, err
	}
	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, false, fmt.Errorf("error deserializing : length %v exceeds %v", length, MaxFrameSize)
	}
	frame := make([]byte, length)
	ok, err = b.readFull(conn, frame)
	if !ok || err != nil {
		return nil, ok, err
	}
	return frame, true, nil
}

// Handle incoming traffic
func (b *VirtualBus) handleReception(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.wg.Done()
	}()
	for {
		frame, ok, err := b.Recv(conn)
		if err != nil {
			b.logger.Errorf("listening routine has closed because : %v", err)
			// Wait for disconnect to release it
			<-b.stopChan
			return
		}
		if !ok {
			return
		}
		b.mu.Lock()
		handler := b.framehandler
		b.mu.Unlock()
		if handler != nil {
			handler.Handle(frame)
		}
	}
}

// SetReceiveOwn passes every sent frame to the subscriber as well
func (b *VirtualBus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}
