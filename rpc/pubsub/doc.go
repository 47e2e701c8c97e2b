// Package pubsub builds publish/subscribe sockets on top of the socket core.
//
// Key Components:
//
//   - PubSocket: Broadcasts each message to every connected peer. Until the
//     socket is bound or connected, messages are held in a queue bounded by the
//     high-water-mark of the configuration (overflow emits "drop"); the queue is
//     flushed in order when a connection is established (emits "flush").
//
//   - SubSocket: Receives messages and delivers those whose first part (the
//     topic) matches one of its subscriptions as "message" events. Without any
//     subscription every message is delivered. Send always returns
//     ErrSubscriberSend.
//
// Either side may bind; the other connects:
//
//	pub := pubsub.NewPubSocket(common.DefaultSocketConfig())
//	_ = pub.Bind("tcp://0.0.0.0:3000")
//
//	sub := pubsub.NewSubSocket(common.DefaultSocketConfig())
//	sub.Subscribe("orders.*")
//	sub.On(socket.EventMessage, func(ev socket.Event) { ... })
//	_ = sub.Connect("tcp://127.0.0.1:3000")
//
//	_ = pub.SendStrings("orders.created", `{"id":42}`)
package pubsub
