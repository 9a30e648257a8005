package faculty

import (
	"context"
)

// Directory serves faculty profile reads and section assignments.
type Directory struct {
	deps Deps
}

func NewDirectory(deps Deps) *Directory {
	deps.normalize()
	return &Directory{deps: deps}
}

// Profile returns the faculty registered under email.
func (d *Directory) Profile(ctx context.Context, email string) (Faculty, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Faculty{}, ErrEmailRequired
	}
	f, err := d.deps.Store.FindFacultyByEmail(ctx, email)
	if err != nil {
		return Faculty{}, err
	}
	if f == nil {
		return Faculty{}, ErrFacultyNotFound
	}
	return *f, nil
}

// UpdateSections replaces the sections a faculty teaches.
func (d *Directory) UpdateSections(ctx context.Context, email string, sections []string) (Faculty, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Faculty{}, ErrEmailRequired
	}
	var out Faculty
	err := d.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		f, err := tx.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFacultyNotFound
		}
		f.Sections = SplitSections(JoinSections(sections))
		if err := tx.Save(ctx, f); err != nil {
			return err
		}
		out = *f
		return nil
	})
	if err != nil {
		return Faculty{}, err
	}
	d.deps.Logger.WithField("email", email).Info("faculty sections updated")
	return out, nil
}
