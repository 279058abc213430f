package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/pkg/cerr"
	"github.com/chainagent/chainagent/pkg/storage"
)

const permissionsPrefix = "permissions"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

var _ permission.Repository = (*YAMLRepository)(nil)

func path(user string) string {
	return fmt.Sprintf("%s/%s.yaml", permissionsPrefix, user)
}

func (r *YAMLRepository) Get(ctx context.Context, user string) (*permission.Permission, error) {
	data, err := r.storage.Read(ctx, path(user))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("permission", err)
	}
	var p permission.Permission
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal permission: %w", err))
	}
	return &p, nil
}

func (r *YAMLRepository) Upsert(ctx context.Context, p *permission.Permission) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal permission: %w", err))
	}
	if err := r.storage.Write(ctx, path(p.User), data); err != nil {
		return cerr.WrapStorageWriteError("permission", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*permission.Permission, error) {
	keys, err := r.storage.List(ctx, permissionsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("permissions", err)
	}
	var all []*permission.Permission
	for _, key := range keys {
		data, err := r.storage.Read(ctx, key)
		if err != nil {
			continue
		}
		var p permission.Permission
		if err := yaml.Unmarshal(data, &p); err != nil {
			continue
		}
		all = append(all, &p)
	}
	return all, nil
}
