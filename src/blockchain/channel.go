package blockchain

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned once the engine behind a channel is gone.
var ErrChannelClosed = errors.New("block request channel closed")

// StreamBuffer is the number of events buffered for a subscriber. Events are
// dropped for subscribers that fall behind.
const StreamBuffer = 128

// Request is a message waiting to be served, with the channel its replies go
// to.
type Request struct {
	Msg  Message
	resp chan Message
}

// Reply sends a message to the requester. It never blocks: replies to a
// requester that stopped listening are dropped.
func (r Request) Reply(msg Message) bool {
	select {
	case r.resp <- msg:
		return true
	default:
		return false
	}
}

// Channel is the request/response rendezvous between the engine and its
// clients. It outlives engine restarts and is closed exactly once.
type Channel struct {
	reqCh   chan Request
	closeCh chan struct{}
	once    sync.Once
}

// NewChannel ...
func NewChannel() *Channel {
	return &Channel{
		reqCh:   make(chan Request),
		closeCh: make(chan struct{}),
	}
}

// Sender returns the client side of the channel.
func (c *Channel) Sender() *RequestSender {
	return &RequestSender{reqCh: c.reqCh, closeCh: c.closeCh}
}

// Requests returns the server side of the channel.
func (c *Channel) Requests() <-chan Request {
	return c.reqCh
}

// Close wakes up every blocked client with ErrChannelClosed.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.closeCh)
	})
}

// Done is closed when the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.closeCh
}

// RequestSender is the client side of a Channel. It is safe for concurrent use.
type RequestSender struct {
	reqCh   chan<- Request
	closeCh <-chan struct{}
}

// SendSync hands a message to the engine and returns the Receiver on which the
// reply, or the event stream of a subscription, arrives. It blocks while the
// engine is stopped.
func (s *RequestSender) SendSync(msg Message) (*Receiver, error) {
	return s.Send(context.Background(), msg)
}

// Send is SendSync with cancellation.
func (s *RequestSender) Send(ctx context.Context, msg Message) (*Receiver, error) {
	size := 1
	if _, ok := msg.(SubscribeRequest); ok {
		size = StreamBuffer
	}

	req := Request{Msg: msg, resp: make(chan Message, size)}

	select {
	case s.reqCh <- req:
		return &Receiver{ch: req.resp, closeCh: s.closeCh}, nil
	case <-s.closeCh:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Request sends msg and waits for its single reply.
func (s *RequestSender) Request(ctx context.Context, msg Message) (Message, error) {
	recv, err := s.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	return recv.Recv(ctx)
}

// Receiver is where replies and events arrive.
type Receiver struct {
	ch      <-chan Message
	closeCh <-chan struct{}
}

// RecvSync blocks until a message arrives or the channel is closed.
func (r *Receiver) RecvSync() (Message, error) {
	return r.Recv(context.Background())
}

// Recv is RecvSync with cancellation. Pending messages are delivered before
// ErrChannelClosed.
func (r *Receiver) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-r.ch:
		return msg, nil
	default:
	}

	select {
	case msg := <-r.ch:
		return msg, nil
	case <-r.closeCh:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
