package graphdb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const mimeType = "application/vnd.gremlin-v2.0+json"

// Submitter executes a Gremlin query with bindings and returns the raw
// result items.
type Submitter interface {
	Submit(query string, bindings map[string]any) ([]any, error)
}

// Client speaks the Gremlin Server websocket protocol (GraphSON v2
// framing, SASL plain auth). One connection per query keeps the client
// free of keepalive bookkeeping; queries are infrequent.
type Client struct {
	Endpoint string
	Username string
	Password string

	Dialer *websocket.Dialer
}

// NewClient builds a client for a Cosmos-style Gremlin endpoint, where
// the username encodes the database and graph.
func NewClient(endpoint, database, graph, primaryKey string) *Client {
	return &Client{
		Endpoint: endpoint,
		Username: fmt.Sprintf("/dbs/%s/colls/%s", database, graph),
		Password: primaryKey,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

type request struct {
	RequestID string         `json:"requestId"`
	Op        string         `json:"op"`
	Processor string         `json:"processor"`
	Args      map[string]any `json:"args"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data []any `json:"data"`
	} `json:"result"`
}

// Gremlin Server response status codes.
const (
	statusSuccess      = 200
	statusNoContent    = 204
	statusPartial      = 206
	statusAuthenticate = 407
)

func (c *Client) writeFrame(conn *websocket.Conn, req request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	// Binary frame: mime type length prefix, mime type, JSON payload.
	frame := make([]byte, 0, 1+len(mimeType)+len(payload))
	frame = append(frame, byte(len(mimeType)))
	frame = append(frame, mimeType...)
	frame = append(frame, payload...)
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Submit runs one query to completion, following partial-content and
// authentication challenges.
func (c *Client) Submit(query string, bindings map[string]any) ([]any, error) {
	conn, _, err := c.Dialer.Dial(c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gremlin dial %s: %w", c.Endpoint, err)
	}
	defer conn.Close()

	reqID := uuid.NewString()
	req := request{
		RequestID: reqID,
		Op:        "eval",
		Processor: "",
		Args: map[string]any{
			"gremlin":  query,
			"bindings": bindings,
			"language": "gremlin-groovy",
		},
	}
	if err := c.writeFrame(conn, req); err != nil {
		return nil, fmt.Errorf("gremlin write: %w", err)
	}

	var results []any
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("gremlin read: %w", err)
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("gremlin decode: %w", err)
		}

		switch resp.Status.Code {
		case statusAuthenticate:
			sasl := base64.StdEncoding.EncodeToString(
				[]byte("\x00" + c.Username + "\x00" + c.Password))
			auth := request{
				RequestID: reqID,
				Op:        "authentication",
				Processor: "",
				Args:      map[string]any{"sasl": sasl},
			}
			if err := c.writeFrame(conn, auth); err != nil {
				return nil, fmt.Errorf("gremlin auth: %w", err)
			}
		case statusPartial:
			results = append(results, resp.Result.Data...)
		case statusSuccess:
			results = append(results, resp.Result.Data...)
			return results, nil
		case statusNoContent:
			return results, nil
		default:
			return nil, fmt.Errorf("gremlin query failed (%d): %s", resp.Status.Code, resp.Status.Message)
		}
	}
}
