package ledger

import "errors"

// Operation errors. All of them are recoverable: handlers translate them
// into a response and the collection, in memory and in storage, stays as
// it was before the call.
var (
	ErrStorageRead       = errors.New("failed to read product collection from storage")
	ErrStorageWrite      = errors.New("failed to write product collection to storage")
	ErrDuplicateProduct  = errors.New("a product with the same descricao or codprod already exists")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInsufficientStock = errors.New("quantity exceeds the available stock")
	ErrNotFound          = errors.New("product not found")
)
