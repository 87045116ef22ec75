package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

var ErrBridgeBusy = errors.New("a wallet page is already attached")

type bridgeRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type bridgeResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Bridge relays requests to the injected provider of a browser page that is
// attached over a websocket. Only one page may be attached at a time.
type Bridge struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	pending map[uint64]chan bridgeResponse
	onAttach []func()

	writeMu sync.Mutex
}

func NewBridge() *Bridge {
	return &Bridge{pending: make(map[uint64]chan bridgeResponse)}
}

// Available reports whether a wallet page is attached.
func (b *Bridge) Available() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// OnAttach registers fn to run each time a wallet page attaches. fn runs on
// its own goroutine so it may issue requests through the bridge.
func (b *Bridge) OnAttach(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onAttach = append(b.onAttach, fn)
}

// Attach serves conn until it closes. Requests still pending when the page
// goes away fail with CodeDisconnected.
func (b *Bridge) Attach(conn *websocket.Conn) error {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		return ErrBridgeBusy
	}
	b.conn = conn
	hooks := append([]func(){}, b.onAttach...)
	b.mu.Unlock()

	log.Info("Wallet page attached", "remote", conn.RemoteAddr())
	defer b.detach(conn)

	for _, fn := range hooks {
		go fn()
	}

	for {
		var resp bridgeResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		delete(b.pending, resp.ID)
		b.mu.Unlock()
		if !ok {
			log.Warn("Dropping bridge response for unknown request", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (b *Bridge) detach(conn *websocket.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	pending := b.pending
	b.pending = make(map[uint64]chan bridgeResponse)
	b.mu.Unlock()

	log.Info("Wallet page detached", "pending", len(pending))
	for _, ch := range pending {
		ch <- bridgeResponse{Error: &Error{Code: CodeDisconnected, Message: "Wallet page disconnected."}}
	}
}

func (b *Bridge) forget(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return nil, &Error{Code: CodeDisconnected, Message: "No wallet page is attached."}
	}
	b.nextID++
	id := b.nextID
	ch := make(chan bridgeResponse, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	b.writeMu.Lock()
	err := conn.WriteJSON(bridgeRequest{ID: id, Method: args.Method, Params: args.Params})
	b.writeMu.Unlock()
	if err != nil {
		b.forget(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		if len(resp.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return resp.Result, nil
	case <-ctx.Done():
		b.forget(id)
		return nil, ctx.Err()
	}
}
