package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfirmer waits for transaction confirmation via signatureSubscribe.
// It is the fast path for the live executor; callers fall back to status
// polling when the subscription fails. Each wait uses a dedicated
// connection: confirmations are rare, long-lived subscriptions are not
// worth the reconnect machinery here.
type WSConfirmer struct {
	endpoint  string
	dialer    *websocket.Dialer
	requestID atomic.Uint64

	// WriteTimeout bounds subscribe writes, ReadTimeout bounds each read.
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// NewWSConfirmer creates a confirmer for the given WebSocket endpoint.
func NewWSConfirmer(endpoint string) *WSConfirmer {
	return &WSConfirmer{
		endpoint:     endpoint,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

// wsRequest is a JSON-RPC 2.0 request over WebSocket.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage is the union of subscription confirmations and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Result struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
		} `json:"result"`
	} `json:"params"`
}

// WaitForConfirmation blocks until the signature reaches the confirmed
// commitment, the transaction fails on chain, or ctx expires. Returns
// the status observed in the notification.
func (c *WSConfirmer) WaitForConfirmation(ctx context.Context, signature string) (*SignatureStatus, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock reads when the context expires.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read message: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		// Subscription confirmation for our request.
		if msg.ID == reqID {
			if msg.Error != nil {
				return nil, fmt.Errorf("subscribe: %w", msg.Error)
			}
			continue
		}

		// signatureNotification fires once at the requested commitment.
		if msg.Method == "signatureNotification" && msg.Params != nil {
			return &SignatureStatus{
				Slot:               msg.Params.Result.Context.Slot,
				ConfirmationStatus: "confirmed",
				Err:                msg.Params.Result.Value.Err,
			}, nil
		}
	}
}
