// Package repo is the persistence layer. Queries are written against ent's SQL
// dialect builder and run through an ent driver, so the same code serves the
// pooled client and transactions.
package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

// Client is the entry point for non-transactional queries and the factory for
// transactions.
type Client struct {
	queries
	drv dialect.Driver
}

// Tx is a running transaction. All query methods are available on it.
type Tx struct {
	queries
	tx dialect.Tx
}

type queries struct {
	eq dialect.ExecQuerier
}

// TxRunner is implemented by stores able to run fn atomically.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

func NewClient(drv dialect.Driver) *Client {
	return &Client{queries: queries{eq: drv}, drv: drv}
}

func (c *Client) Driver() dialect.Driver { return c.drv }

func (c *Client) Close() error { return c.drv.Close() }

// WithTx runs fn inside a transaction. An error returned from fn, or a panic,
// rolls the transaction back.
func (c *Client) WithTx(ctx context.Context, fn func(q Queries) error) (err error) {
	dtx, err := c.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{queries: queries{eq: dtx}, tx: dtx}

	defer func() {
		if v := recover(); v != nil {
			_ = dtx.Rollback()
			panic(v)
		}
	}()

	if err = fn(tx); err != nil {
		if rerr := dtx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err = dtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var (
	_ Queries  = (*Client)(nil)
	_ Queries  = (*Tx)(nil)
	_ TxRunner = (*Client)(nil)
)
