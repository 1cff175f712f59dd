package board

import (
	"context"
	"errors"
	"sync"
)

// errSkip aborts a transaction before anything was applied, without error.
var errSkip = errors.New("skip")

// transaction is an optimistic local update paired with a remote call. snapshot,
// apply, reconcile, revert, and finally run with mu held; remote runs without it.
// finally runs on every path once snapshot succeeded.
type transaction[S, R any] struct {
	mu        sync.Locker
	snapshot  func() (S, error)
	apply     func(S)
	remote    func(context.Context) (R, error)
	reconcile func(R)
	revert    func(S, error)
	finally   func()
}

func (tx transaction[S, R]) run(ctx context.Context) error {
	tx.mu.Lock()
	prev, err := tx.snapshot()
	if err != nil {
		tx.mu.Unlock()
		if errors.Is(err, errSkip) {
			return nil
		}
		return err
	}
	locked := true
	defer func() {
		if !locked {
			tx.mu.Lock()
		}
		if tx.finally != nil {
			tx.finally()
		}
		tx.mu.Unlock()
	}()
	if tx.apply != nil {
		tx.apply(prev)
	}
	tx.mu.Unlock()
	locked = false

	res, err := tx.remote(ctx)

	tx.mu.Lock()
	locked = true
	if err != nil {
		if tx.revert != nil {
			tx.revert(prev, err)
		}
		return err
	}
	if tx.reconcile != nil {
		tx.reconcile(res)
	}
	return nil
}
