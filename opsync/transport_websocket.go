package opsync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// an empty binary message is a ping on the operation link

type WebSocketSinkSettings struct {
	HandshakeTimeout time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	// how long `OnNext` waits for buffer space before dropping the operation
	SendTimeout    time.Duration
	SendBufferSize int
}

func DefaultWebSocketSinkSettings() *WebSocketSinkSettings {
	return &WebSocketSinkSettings{
		HandshakeTimeout: 2 * time.Second,
		PingTimeout:      1 * time.Second,
		WriteTimeout:     5 * time.Second,
		SendTimeout:      5 * time.Second,
		SendBufferSize:   32,
	}
}

// WebSocketSink is an observer that writes each operation as one frame to a websocket.
// Completing the sink flushes pending frames and closes the connection.
type WebSocketSink struct {
	ctx    context.Context
	cancel context.CancelFunc

	ws       *websocket.Conn
	settings *WebSocketSinkSettings

	send      chan []byte
	completed chan struct{}
	// closed when both the writer and reader have exited
	done chan struct{}

	completeOnce sync.Once
}

func DialWebSocketSinkWithDefaults(ctx context.Context, url string, jwt string) (*WebSocketSink, error) {
	return DialWebSocketSink(ctx, url, jwt, DefaultWebSocketSinkSettings())
}

func DialWebSocketSink(
	ctx context.Context,
	url string,
	jwt string,
	settings *WebSocketSinkSettings,
) (*WebSocketSink, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: settings.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", jwt))

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	sink := &WebSocketSink{
		ctx:       cancelCtx,
		cancel:    cancel,
		ws:        ws,
		settings:  settings,
		send:      make(chan []byte, settings.SendBufferSize),
		completed: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go sink.run()
	return sink, nil
}

func (self *WebSocketSink) run() {
	defer close(self.done)

	readDone := make(chan struct{})
	go func() {
		defer func() {
			self.cancel()
			close(readDone)
		}()
		for {
			// the other side only sends control messages
			if _, _, err := self.ws.ReadMessage(); err != nil {
				glog.V(2).Infof("[ws]<- error = %s\n", err)
				return
			}
		}
	}()

	self.write()

	self.cancel()
	self.ws.Close()
	<-readDone
}

func (self *WebSocketSink) writeFrame(messageType int, frame []byte) error {
	self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	return self.ws.WriteMessage(messageType, frame)
}

func (self *WebSocketSink) write() {
	for {
		select {
		case <-self.ctx.Done():
			return
		case <-self.completed:
			for {
				select {
				case frame := <-self.send:
					if err := self.writeFrame(websocket.BinaryMessage, frame); err != nil {
						glog.Infof("[ws]-> drain error = %s\n", err)
						return
					}
				default:
					closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
					if err := self.writeFrame(websocket.CloseMessage, closeMessage); err != nil {
						glog.V(2).Infof("[ws]-> close error = %s\n", err)
					}
					return
				}
			}
		case frame := <-self.send:
			if err := self.writeFrame(websocket.BinaryMessage, frame); err != nil {
				// note that for websocket a deadline timeout cannot be recovered
				glog.Infof("[ws]-> error = %s\n", err)
				return
			}
			glog.V(2).Infof("[ws]-> %d bytes\n", len(frame))
		case <-time.After(self.settings.PingTimeout):
			if err := self.writeFrame(websocket.BinaryMessage, make([]byte, 0)); err != nil {
				return
			}
		}
	}
}

// Observer implementation

func (self *WebSocketSink) OnNext(op SyncOperation) {
	frame, err := EncodeOperation(op)
	if err != nil {
		glog.Infof("[ws]encode %s err = %s\n", OperationString(op), err)
		return
	}
	select {
	case <-self.ctx.Done():
		glog.Infof("[ws]drop closed %s\n", OperationString(op))
	case <-self.completed:
		glog.Infof("[ws]drop completed %s\n", OperationString(op))
	case self.send <- frame:
	case <-time.After(self.settings.SendTimeout):
		glog.Infof("[ws]drop timeout %s\n", OperationString(op))
	}
}

func (self *WebSocketSink) OnCompleted() {
	self.completeOnce.Do(func() {
		close(self.completed)
	})
}

func (self *WebSocketSink) Done() <-chan struct{} {
	return self.done
}

// Close drops pending frames and waits for the connection to close.
func (self *WebSocketSink) Close() {
	self.cancel()
	<-self.done
}

type WebSocketHandlerSettings struct {
	HandshakeTimeout time.Duration
	// the link is closed when nothing, including a ping, arrives within this timeout
	ReadTimeout      time.Duration
	ReceiverSettings *ReceiverSettings
}

func DefaultWebSocketHandlerSettings() *WebSocketHandlerSettings {
	return &WebSocketHandlerSettings{
		HandshakeTimeout: 2 * time.Second,
		ReadTimeout:      15 * time.Second,
		ReceiverSettings: DefaultReceiverSettings(),
	}
}

type ReceiveSessionOperationFunction func(sessionId Id, op SyncOperation)

// WebSocketOperationHandler accepts websocket links from `WebSocketSink`s.
// Each link must carry a session jwt signed with the handler secret.
// Operations are delivered per session in sequence order.
type WebSocketOperationHandler struct {
	jwtSecret       []byte
	receiveCallback ReceiveSessionOperationFunction
	settings        *WebSocketHandlerSettings

	upgrader *websocket.Upgrader
	links    sync.WaitGroup
}

func NewWebSocketOperationHandlerWithDefaults(
	jwtSecret []byte,
	receiveCallback ReceiveSessionOperationFunction,
) *WebSocketOperationHandler {
	return NewWebSocketOperationHandler(jwtSecret, receiveCallback, DefaultWebSocketHandlerSettings())
}

func NewWebSocketOperationHandler(
	jwtSecret []byte,
	receiveCallback ReceiveSessionOperationFunction,
	settings *WebSocketHandlerSettings,
) *WebSocketOperationHandler {
	return &WebSocketOperationHandler{
		jwtSecret:       jwtSecret,
		receiveCallback: receiveCallback,
		settings:        settings,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: settings.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (self *WebSocketOperationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jwt, ok := bearerToken(r)
	if !ok {
		glog.Infof("[ws]missing auth from %s\n", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionJwt, err := ParseSessionJwt(jwt, self.jwtSecret)
	if err != nil {
		glog.Infof("[ws]auth error from %s = %s\n", r.RemoteAddr, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	self.links.Add(1)
	defer self.links.Done()

	ws, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		glog.Infof("[ws]upgrade error = %s\n", err)
		return
	}
	defer ws.Close()

	sessionId := sessionJwt.SessionId
	receiver := NewOperationReceiver(func(op SyncOperation) {
		self.receiveCallback(sessionId, op)
	}, self.settings.ReceiverSettings)
	defer receiver.Flush()

	glog.V(2).Infof("[ws]%s connected\n", sessionId)
	for {
		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				glog.V(2).Infof("[ws]%s closed\n", sessionId)
			} else {
				glog.Infof("[ws]%s<- error = %s\n", sessionId, err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if 0 == len(message) {
				// ping
				glog.V(2).Infof("[ws]ping %s<-\n", sessionId)
				continue
			}
			if err := receiver.ReceiveFrame(message); err != nil {
				glog.Infof("[ws]drop %s<- = %s\n", sessionId, err)
			}
		default:
			glog.V(2).Infof("[ws]other=%d %s<-\n", messageType, sessionId)
		}
	}
}

// Wait blocks until every accepted link has ended.
func (self *WebSocketOperationHandler) Wait() {
	self.links.Wait()
}
