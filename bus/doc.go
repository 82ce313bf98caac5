// Package bus provides the message layer connecting NeuraLux services.
//
// # Overview
//
// NeuraLux is a constellation of independent AI services (inference,
// speech, vision, file indexing, health monitoring, proactive agents)
// that never address each other directly. All communication flows over
// topics on a lightweight broker, through the Client in this package.
//
// # Patterns
//
// Fire-and-forget events:
//
//	client.Publish("agent.music.generate", bus.Payload{"prompt": "lofi"})
//
//	sub, _ := client.Subscribe("agent.music.generate", func(msg *bus.Message) {
//	    // Handle event
//	})
//
// Request/reply - synchronous RPC over the async transport:
//
//	// Responder
//	client.ReplyHandler("system.file.search", func(req bus.Payload) (bus.Payload, error) {
//	    return bus.Payload{"matches": search(req["query"])}, nil
//	})
//
//	// Requester
//	reply, err := client.Request(ctx, "system.file.search",
//	    bus.Payload{"query": "invoice"}, 2*time.Second)
//
// Each request gets a fresh correlation id and a private reply topic,
// so any number of requests can be in flight concurrently; a late or
// duplicate reply is dropped, never delivered twice.
//
// # Conversation routing
//
// A logical interaction that spans many asynchronous messages (a chat
// turn, a long-running generation) uses a conversation topic instead of
// request/reply. The requester subscribes to conversation.<id> before
// publishing work that names that id; any service, at any later time,
// routes results there:
//
//	sub, _ := client.SubscribeConversation(id, onResult)
//	client.RouteToConversation(id, bus.Payload{"chunk": text})
//
// Unlike request/reply there is no at-most-once contract: zero, one, or
// many deliveries may arrive, and the subscriber decides when to
// unsubscribe.
//
// # Transports
//
// NATSTransport is the production broker connection. MemoryTransport is
// an in-process transport for tests and single-process deployments.
// Both deliver messages at most once and preserve order within a topic;
// no ordering is guaranteed across topics.
package bus
