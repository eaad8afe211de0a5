package feed

// Aliases exposing unexported response types to the external test package.
type (
	MessagesResponse = messagesResponse
	ChatsResponse    = chatsResponse
)
