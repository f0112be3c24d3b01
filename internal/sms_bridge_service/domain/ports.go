package domain

import "context"

// KVStore is the durable key-value contract backing the correlation store.
// Writers are not serialized: concurrent Set calls on one key are last-write-wins.
type KVStore interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// IdentityResolver looks up the display identity of a platform user.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (Identity, error)
}

// Introducer produces the text that precedes the first SMS relayed from a
// conversation over a newly bound number.
type Introducer interface {
	Introduce(ctx context.Context, msg Message) (string, error)
}

// SMSSender hands an SMS to the gateway.
type SMSSender interface {
	Send(ctx context.Context, from, to, text string) error
}

// PlatformSender posts a text message into a conversation on behalf of a user.
type PlatformSender interface {
	SendAsUser(ctx context.Context, conversationID, userID, text string) error
}

// HookRegistrar registers the receipt hook with the webhook service.
type HookRegistrar interface {
	Register(ctx context.Context, hook ReceiptHookConfig, targetURL string) error
}

// JobEnqueuer places relay jobs on the durable queue.
type JobEnqueuer interface {
	EnqueueInboundSMS(ctx context.Context, job InboundSMSJob) error
	EnqueueUnreadMessage(ctx context.Context, job UnreadMessageJob) error
}

// GatewayNumber is a virtual number rented on the SMS gateway account.
type GatewayNumber struct {
	MSISDN      string
	Country     string
	CallbackURL string
}

// NumberInventory lists the gateway account's numbers and points their
// inbound SMS callback at us.
type NumberInventory interface {
	ListNumbers(ctx context.Context) ([]GatewayNumber, error)
	UpdateCallback(ctx context.Context, number GatewayNumber, callbackURL string) error
}
