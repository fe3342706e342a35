package accounts

import (
	"context"

	"github.com/platinummonkey/warden/pkg/faults"
)

// Directory is the read-side lookup surface over account records. Absence is
// an absent-value result, never an error; callers decide whether a missing
// account is fatal for their operation.
type Directory struct {
	store *Store
}

// NewDirectory creates a directory over the given store.
func NewDirectory(store *Store) *Directory {
	return &Directory{store: store}
}

// FindByID looks up an account by id. Returns (nil, nil) when absent.
func (d *Directory) FindByID(ctx context.Context, id int64) (*Account, error) {
	account, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to look up account by id", err)
	}
	return account, nil
}

// FindByEmail looks up an account by email. Returns (nil, nil) when absent.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	account, err := d.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to look up account by email", err)
	}
	return account, nil
}

// EmailRegistered reports whether any account uses the given email.
func (d *Directory) EmailRegistered(ctx context.Context, email string) (bool, error) {
	account, err := d.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}
