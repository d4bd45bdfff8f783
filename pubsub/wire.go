package pubsub

import (
	"context"
	"fmt"
	"net"
	"time"

	"netkit/jsoncodec"
	"netkit/transport"
)

// WireMessage is the JSON envelope exchanged between broker and client, per
// spec.md §4.6's tagged-discriminator convention ("action" distinguishes
// client->broker requests; absence of "action" marks a broker->subscriber
// delivery).
type WireMessage struct {
	Action   string         `json:"action,omitempty"`
	Topic    string         `json:"topic,omitempty"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPublish     = "publish"
)

// Server accepts stream connections and speaks the pub/sub wire protocol on
// each: subscribe/unsubscribe/publish requests in, JSON delivery frames out.
type Server struct {
	broker   *Broker
	maxFrame uint32
}

// NewServer wraps broker in a Transport-facing stream handler.
func NewServer(broker *Broker, maxFrame uint32) *Server {
	return &Server{broker: broker, maxFrame: maxFrame}
}

// Listen starts accepting connections on ep until ctx is canceled.
func (s *Server) Listen(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleConn)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
	subID := remote.String()
	sub := NewSubscriber(subID, s.broker.cfg.QueueSize)
	defer s.broker.RemoveSubscriber(sub)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			msg, ok := sub.Next()
			if !ok {
				return
			}
			delivery := struct {
				Topic    string         `json:"topic"`
				Message  string         `json:"message"`
				Metadata map[string]any `json:"metadata,omitempty"`
			}{Topic: msg.Topic, Message: string(msg.Payload), Metadata: msg.Metadata}
			if err := jsoncodec.WriteJSON(conn, s.maxFrame, delivery); err != nil {
				return
			}
		}
	}()

	go func() {
		select {
		case <-shutdown:
			s.broker.RemoveSubscriber(sub)
		case <-writerDone:
		}
	}()

	for {
		var req WireMessage
		if err := jsoncodec.ReadJSON(conn, s.maxFrame, &req); err != nil {
			return
		}
		switch req.Action {
		case actionSubscribe:
			s.broker.Subscribe(sub, req.Topic)
		case actionUnsubscribe:
			s.broker.Unsubscribe(sub, req.Topic)
		case actionPublish:
			s.broker.Publish(BrokerMessage{
				Topic:       req.Topic,
				Payload:     []byte(req.Message),
				Metadata:    req.Metadata,
				PublisherID: subID,
			})
		default:
			// Unknown discriminator: reject per spec.md §9, connection stays
			// open so the client can correct itself.
		}
	}
}

// Client is a thin pub/sub client over a dialed stream connection.
type Client struct {
	conn     net.Conn
	maxFrame uint32
}

// Dial connects to a pub/sub server.
func Dial(ctx context.Context, ep transport.Endpoint, timeout time.Duration, maxFrame uint32) (*Client, error) {
	conn, err := transport.DialStream(ctx, ep, timeout)
	if err != nil {
		return nil, fmt.Errorf("pubsub: dial: %w", err)
	}
	return &Client{conn: conn, maxFrame: maxFrame}, nil
}

// Subscribe sends a subscribe request for pattern.
func (c *Client) Subscribe(pattern string) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, WireMessage{Action: actionSubscribe, Topic: pattern})
}

// Unsubscribe sends an unsubscribe request for pattern.
func (c *Client) Unsubscribe(pattern string) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, WireMessage{Action: actionUnsubscribe, Topic: pattern})
}

// Publish sends a publish request.
func (c *Client) Publish(topic, message string, metadata map[string]any) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, WireMessage{Action: actionPublish, Topic: topic, Message: message, Metadata: metadata})
}

// Receive blocks for the next delivery frame.
func (c *Client) Receive() (topic, message string, metadata map[string]any, err error) {
	var delivery struct {
		Topic    string         `json:"topic"`
		Message  string         `json:"message"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := jsoncodec.ReadJSON(c.conn, c.maxFrame, &delivery); err != nil {
		return "", "", nil, err
	}
	return delivery.Topic, delivery.Message, delivery.Metadata, nil
}

// Close closes the client's underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
