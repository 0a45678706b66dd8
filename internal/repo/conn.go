package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var errNoTx = errors.New("row lock requires a transaction")

// Conn is the handle repositories query through. A Conn bound to a
// transaction keeps every statement inside it.
type Conn struct {
	db   *gorm.DB
	inTx bool
}

func NewConn(db *gorm.DB) Conn {
	return Conn{db: db}
}

// Session returns the connection carrying ctx. A nil ctx yields the bare
// handle.
func (c Conn) Session(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return c.db
	}
	return c.db.WithContext(ctx)
}

// Bind returns a Conn running on tx. A nil tx leaves c unchanged.
func (c Conn) Bind(tx *gorm.DB) Conn {
	if tx == nil {
		return c
	}
	return Conn{db: tx, inTx: true}
}

func (c Conn) InTx() bool { return c.inTx }

// Now reads the connection clock so stamps written by hand match the ones
// gorm writes.
func (c Conn) Now() time.Time {
	if c.db != nil && c.db.Config != nil && c.db.NowFunc != nil {
		return c.db.NowFunc()
	}
	return time.Now().UTC()
}
