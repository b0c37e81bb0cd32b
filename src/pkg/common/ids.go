package common

import (
	"math"

	"github.com/google/uuid"
)

// TransactionID identifies a single unit of work. Normal ids are compared
// modulo 2^32.
type TransactionID uint32

const (
	InvalidTransactionID     TransactionID = 0
	BootstrapTransactionID   TransactionID = 1
	FrozenTransactionID      TransactionID = 2
	FirstNormalTransactionID TransactionID = 3
	MaxTransactionID         TransactionID = math.MaxUint32
)

func (x TransactionID) IsValid() bool {
	return x != InvalidTransactionID
}

func (x TransactionID) IsNormal() bool {
	return x >= FirstNormalTransactionID
}

// Precedes reports whether x is logically older than y. Special ids are
// ordered numerically and always precede normal ones.
func (x TransactionID) Precedes(y TransactionID) bool {
	if !x.IsNormal() || !y.IsNormal() {
		return x < y
	}
	return int32(x-y) < 0
}

func (x TransactionID) Follows(y TransactionID) bool {
	return y.Precedes(x)
}

// Advance returns the next id, skipping the special ones on wraparound.
func (x TransactionID) Advance() TransactionID {
	x++
	if x < FirstNormalTransactionID {
		x = FirstNormalTransactionID
	}
	return x
}

// MultiXactID names a group of transactions sharing one row.
type MultiXactID uint32

const (
	InvalidMultiXactID MultiXactID = 0
	FirstMultiXactID   MultiXactID = 1
	MaxMultiXactID     MultiXactID = math.MaxUint32
)

func (m MultiXactID) IsValid() bool {
	return m != InvalidMultiXactID
}

func (m MultiXactID) Precedes(o MultiXactID) bool {
	return int32(m-o) < 0
}

func (m MultiXactID) PrecedesOrEquals(o MultiXactID) bool {
	return int32(m-o) <= 0
}

// Next wraps from MaxMultiXactID straight to FirstMultiXactID.
func (m MultiXactID) Next() MultiXactID {
	m++
	if m < FirstMultiXactID {
		m = FirstMultiXactID
	}
	return m
}

// Previous is the inverse of Next.
func (m MultiXactID) Previous() MultiXactID {
	if m == FirstMultiXactID {
		return MaxMultiXactID
	}
	return m - 1
}

// MultiXactOffset is a position in the member log.
type MultiXactOffset uint32

const MaxMultiXactOffset MultiXactOffset = math.MaxUint32

func (o MultiXactOffset) Precedes(p MultiXactOffset) bool {
	return int32(o-p) < 0
}

// OwnerID identifies the database that holds the oldest live group.
type OwnerID = uuid.UUID

var NilOwner OwnerID = uuid.Nil
