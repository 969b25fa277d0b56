package main

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// readingBroadcaster pushes every reading as JSON to the connected websocket clients. A client that can not be
// written to within writeTimeout is dropped.
type readingBroadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	messages chan []byte
}

const writeTimeout = time.Second

func newReadingBroadcaster() *readingBroadcaster {
	b := &readingBroadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		messages: make(chan []byte, 64),
	}
	go b.writer()
	return b
}

// Broadcast queues msg for all clients. Slow consumers lose messages rather than stalling the sensor loop.
func (b *readingBroadcaster) Broadcast(msg readingMessage) {
	buf, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case b.messages <- buf:
	default:
		logDbg("BMP085 Info: broadcast queue full, dropping reading\n")
	}
}

func (b *readingBroadcaster) add(conn *websocket.Conn) {
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()
}

func (b *readingBroadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}

func (b *readingBroadcaster) numClients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *readingBroadcaster) writer() {
	for msg := range b.messages {
		b.mu.Lock()
		clients := make([]*websocket.Conn, 0, len(b.clients))
		for conn := range b.clients {
			clients = append(clients, conn)
		}
		b.mu.Unlock()

		for _, conn := range clients {
			err := conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err == nil {
				_, err = conn.Write(msg)
			}
			if err != nil {
				b.remove(conn)
			}
		}
	}
}

// serve registers a client and blocks until it goes away. Clients are not expected to send anything.
func (b *readingBroadcaster) serve(conn *websocket.Conn) {
	b.add(conn)
	var discard []byte
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			break
		}
	}
	b.remove(conn)
}
