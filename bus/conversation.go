package bus

// Conversation routing lets one logical interaction span many
// asynchronous messages. The requester subscribes to the conversation's
// topic before publishing work that names the conversation id; a
// decoupled service routes results there whenever they are ready, with
// no correlation registry involved. There is no at-most-once contract:
// zero, one, or many deliveries may arrive over the conversation's
// lifetime, in publish order. Ending the conversation is the
// subscriber's job: unsubscribe once a terminal message is observed.

// conversationPrefix derives a conversation's reply topic from its id.
const conversationPrefix = "conversation."

// ConversationTopic returns the topic a conversation's results flow
// through. Deterministic: every service derives the same topic from the
// same id.
func ConversationTopic(conversationID string) string {
	return conversationPrefix + conversationID
}

// SubscribeConversation registers a handler for every message routed to
// the conversation.
func (c *Client) SubscribeConversation(conversationID string, h EventHandler) (*Subscription, error) {
	if conversationID == "" {
		return nil, ErrInvalidTopic
	}
	return c.Subscribe(ConversationTopic(conversationID), h)
}

// RouteToConversation publishes a result to the conversation's topic.
// Callable by any service at any point in the conversation's lifetime,
// long after the originating request.
func (c *Client) RouteToConversation(conversationID string, payload Payload) error {
	if conversationID == "" {
		return ErrInvalidTopic
	}
	return c.Publish(ConversationTopic(conversationID), payload)
}
