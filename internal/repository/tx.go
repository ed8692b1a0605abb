package repository

import "context"

// Tx exposes repositories bound to one transaction.
type Tx interface {
	Rides() RideRepository
	Drivers() DriverRepository
	Users() UserRepository
	Chats() ChatRepository
	Payments() PaymentRepository
}

// Transactor runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
