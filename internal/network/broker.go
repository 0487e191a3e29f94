// Package network provides an in-process broker for the virtual bus.
// Every byte written by a client is relayed to all the other clients.
package network

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Broker struct {
	logger   *log.Entry
	listener net.Listener
	mu       sync.Mutex
	clients  []net.Conn
	wg       sync.WaitGroup
}

// Start a broker listening on address, e.g. "127.0.0.1:0" for any free port
func NewBroker(address string) (*Broker, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	b := &Broker{
		listener: listener,
		logger:   log.WithFields(log.Fields{"service": "[BROKER]", "address": listener.Addr().String()}),
	}
	b.wg.Add(1)
	go b.serve()
	return b, nil
}

// Address to be used as virtual bus channel
func (b *Broker) Address() string {
	return b.listener.Addr().String()
}

// Number of connected clients
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broker) serve() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.clients = append(b.clients, conn)
		b.mu.Unlock()
		b.logger.Debugf("client %v connected", conn.RemoteAddr())
		b.wg.Add(1)
		go b.relay(conn)
	}
}

func (b *Broker) relay(conn net.Conn) {
	defer b.wg.Done()
	buffer := make([]byte, 2048)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			b.remove(conn)
			return
		}
		b.mu.Lock()
		for _, client := range b.clients {
			if client != conn {
				_, _ = client.Write(buffer[:n])
			}
		}
		b.mu.Unlock()
	}
}

func (b *Broker) remove(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, client := range b.clients {
		if client == conn {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			break
		}
	}
	conn.Close()
}

// Close the broker and all its client connections
func (b *Broker) Close() error {
	err := b.listener.Close()
	b.mu.Lock()
	for _, client := range b.clients {
		client.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return err
}
