package membership

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// BunUserStore is the reference UserStore implementation on top of
// uptrace/bun. Every write is a single statement, which gives the
// per-record atomicity the provider expects.
type BunUserStore struct {
	db *bun.DB
}

func NewBunUserStore(db *bun.DB) *BunUserStore {
	return &BunUserStore{db: db}
}

var _ UserStore = (*BunUserStore)(nil)

func (s *BunUserStore) Find(ctx context.Context, id int64) (*User, error) {
	user := &User{}
	err := s.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(map[string]any{"id": id})
		}
		return nil, err
	}

	return user, nil
}

func (s *BunUserStore) FindByIdentity(ctx context.Context, identity, namespace string) (*User, error) {
	user := &User{}
	err := s.db.NewSelect().
		Model(user).
		Where("?TableAlias.namespace = ?", namespace).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.username = ?", identity).
				WhereOr("?TableAlias.email = ?", identity).
				WhereOr("?TableAlias.phone_number = ?", identity)
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(map[string]any{
				"identity":  identity,
				"namespace": namespace,
			})
		}
		return nil, err
	}

	return user, nil
}

func (s *BunUserStore) Save(ctx context.Context, user *User) error {
	_, err := s.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (s *BunUserStore) Update(ctx context.Context, user *User) error {
	res, err := s.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return notFound(map[string]any{"id": user.ID})
	}

	return nil
}

func (s *BunUserStore) Delete(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := s.db.NewDelete().
		Model((*User)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

func (s *BunUserStore) List(ctx context.Context, namespace string, paging Paging) ([]*User, error) {
	var users []*User
	err := s.db.NewSelect().
		Model(&users).
		Where("?TableAlias.namespace = ?", namespace).
		Order("id ASC").
		Limit(paging.Limit()).
		Offset(paging.Offset()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func notFound(meta map[string]any) error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(meta)
}
