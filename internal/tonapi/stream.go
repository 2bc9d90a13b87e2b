package tonapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

const (
	methodSubscribeAccount   = "subscribe_account"
	methodAccountTransaction = "account_transaction"
)

// TransactionNotice is pushed when a new transaction touches a watched account.
type TransactionNotice struct {
	AccountID string `json:"account_id"`
	Lt        int64  `json:"lt"`
	TxHash    string `json:"tx_hash"`
}

type rpcRequest struct {
	ID      int      `json:"id"`
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

type rpcMessage struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Stream is the tonapi websocket endpoint.
type Stream struct {
	url    string
	token  string
	dialer *websocket.Dialer
}

// NewStream returns a stream client for the websocket url.
func NewStream(url, token string) *Stream {
	return &Stream{url: url, token: token, dialer: websocket.DefaultDialer}
}

// SubscribeAccount subscribes to transactions of accountID and delivers
// every notice on out. It blocks until ctx is done or the connection fails.
func (s *Stream) SubscribeAccount(ctx context.Context, accountID string, out chan<- TransactionNotice) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("%w: dial stream: %v", ErrNetworkFailure, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	err = conn.WriteJSON(rpcRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  methodSubscribeAccount,
		Params:  []string{accountID},
	})
	if err != nil {
		return s.exitErr(ctx, err)
	}
	log.Debug("stream subscribed", "account", accountID)

	for {
		var msg rpcMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return s.exitErr(ctx, err)
		}

		switch {
		case len(msg.Error) > 0:
			return fmt.Errorf("%w: stream error: %s", ErrNetworkFailure, msg.Error)
		case msg.Method == methodAccountTransaction:
			var notice TransactionNotice
			if err := json.Unmarshal(msg.Params, &notice); err != nil {
				log.Debug("stream notice dropped", "error", err)
				continue
			}
			select {
			case out <- notice:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			log.Trace("stream message", "method", msg.Method, "result", string(msg.Result))
		}
	}
}

func (s *Stream) exitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return nil
	}
	return fmt.Errorf("%w: stream: %v", ErrNetworkFailure, err)
}
