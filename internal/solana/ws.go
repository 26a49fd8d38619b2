package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature subscribes to the terminal notification for a
	// signature at the given commitment. The channel delivers at most one
	// notification; the node cancels the subscription after it fires.
	SubscribeSignature(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is a signatureSubscribe message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}
