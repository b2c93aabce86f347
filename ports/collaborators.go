package ports

import "context"

// OwnerResolver resolves an external owner reference (username, API key,
// numeric ID) to a user ID. Implemented by the auth package; storage never
// re-validates ownership beyond this lookup.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, ownerRef string) (int64, error)
}

// StateSerializer converts conversation state to and from an opaque blob.
// The core never inspects the snapshot contents.
type StateSerializer interface {
	Serialize(state any) ([]byte, error)
	Deserialize(blob []byte, into any) error
}
