package taskboard

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/golang/glog"
)

const ObserverSendBufferSize = 8

type ObserverSettings struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	PingTimeout  time.Duration
}

func DefaultObserverSettings() *ObserverSettings {
	return &ObserverSettings{
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  15 * time.Second,
		PingTimeout:  1 * time.Second,
	}
}

// an observer connection backed by a websocket.
// owned by the registry from `Register` until disconnect or write failure.
// the send pump serializes all writes to the socket. the read pump only
// detects disconnects; observers do not speak back to the service.
type WsObserver struct {
	ctx    context.Context
	cancel context.CancelFunc

	ws       *websocket.Conn
	registry *ConnRegistry

	send chan []byte

	settings *ObserverSettings
}

func NewWsObserverWithDefaults(
	ctx context.Context,
	ws *websocket.Conn,
	registry *ConnRegistry,
) *WsObserver {
	return NewWsObserver(ctx, ws, registry, DefaultObserverSettings())
}

func NewWsObserver(
	ctx context.Context,
	ws *websocket.Conn,
	registry *ConnRegistry,
	settings *ObserverSettings,
) *WsObserver {
	cancelCtx, cancel := context.WithCancel(ctx)
	observer := &WsObserver{
		ctx:      cancelCtx,
		cancel:   cancel,
		ws:       ws,
		registry: registry,
		send:     make(chan []byte, ObserverSendBufferSize),
		settings: settings,
	}
	registry.Register(observer)
	go observer.runSend()
	go observer.runReceive()
	return observer
}

// non-blocking. a full send buffer means the connection cannot keep up
// and is treated the same as a closed connection.
func (self *WsObserver) Send(message []byte) error {
	select {
	case <-self.ctx.Done():
		return fmt.Errorf("observer closed")
	default:
	}

	select {
	case self.send <- message:
		return nil
	default:
		return fmt.Errorf("observer not writable")
	}
}

func (self *WsObserver) Close() {
	self.cancel()
}

func (self *WsObserver) runSend() {
	defer func() {
		self.cancel()
		self.registry.Unregister(self)
		self.ws.Close()
	}()

	for {
		select {
		case <-self.ctx.Done():
			return
		case message, ok := <-self.send:
			if !ok {
				return
			}

			self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
			if err := self.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				// note that for websocket a deadline timeout cannot be recovered
				glog.Infof("[ob]-> error = %s\n", err)
				return
			}
			glog.V(2).Infof("[ob]->\n")
		case <-time.After(self.settings.PingTimeout):
			self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
			if err := self.ws.WriteMessage(websocket.PingMessage, make([]byte, 0)); err != nil {
				return
			}
		}
	}
}

func (self *WsObserver) runReceive() {
	defer func() {
		self.cancel()
		self.registry.Unregister(self)
	}()

	self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
	self.ws.SetPongHandler(func(string) error {
		self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		return nil
	})

	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		if _, _, err := self.ws.ReadMessage(); err != nil {
			glog.V(2).Infof("[ob]<- done = %s\n", err)
			return
		}
		self.ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		// inbound messages from observers are ignored
	}
}
