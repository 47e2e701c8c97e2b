package socket

import "github.com/ValentinKolb/dMQ/rpc/framing"

// IBehavior lets a specialized socket (publisher, subscriber) hook into the
// lifecycle of the core socket. All hooks run synchronously on the goroutine
// that triggered them and must not block.
type IBehavior interface {
	// HandleReady is called every time the socket becomes ready (bound, or a dial succeeded)
	HandleReady()

	// HandleConnect is called after a connection was added to the socket
	HandleConnect(c *Connection)

	// Accept decides whether an inbound message is delivered as a "message" event
	Accept(msg framing.Message) bool
}

// DefaultBehavior accepts every message and ignores lifecycle hooks
type DefaultBehavior struct{}

func (DefaultBehavior) HandleReady()                {}
func (DefaultBehavior) HandleConnect(*Connection)   {}
func (DefaultBehavior) Accept(framing.Message) bool { return true }
