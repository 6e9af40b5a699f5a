package clinical

import "context"

type MessageRepository interface {
	// Create stores the message and its observations atomically.
	Create(ctx context.Context, m *StoredMessage) error
	ListObservations(ctx context.Context, limit, offset int) ([]*StoredObservation, int, error)
}
