package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chainagent/chainagent/internal/delegation"
	"github.com/chainagent/chainagent/pkg/cerr"
	"github.com/chainagent/chainagent/pkg/storage"
)

const delegationsPrefix = "delegations"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

var _ delegation.Repository = (*YAMLRepository)(nil)

func path(user, executor string) string {
	return fmt.Sprintf("%s/%s/%s.yaml", delegationsPrefix, user, executor)
}

func (r *YAMLRepository) Get(ctx context.Context, user, executor string) (*delegation.Delegation, error) {
	data, err := r.storage.Read(ctx, path(user, executor))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("delegation", err)
	}
	var d delegation.Delegation
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal delegation: %w", err))
	}
	return &d, nil
}

func (r *YAMLRepository) Upsert(ctx context.Context, d *delegation.Delegation) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal delegation: %w", err))
	}
	if err := r.storage.Write(ctx, path(d.User, d.Executor), data); err != nil {
		return cerr.WrapStorageWriteError("delegation", err)
	}
	return nil
}

func (r *YAMLRepository) ListByUser(ctx context.Context, user string) ([]*delegation.Delegation, error) {
	return r.list(ctx, delegationsPrefix+"/"+user)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*delegation.Delegation, error) {
	return r.list(ctx, delegationsPrefix)
}

func (r *YAMLRepository) list(ctx context.Context, prefix string) ([]*delegation.Delegation, error) {
	keys, err := r.storage.List(ctx, prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("delegations", err)
	}
	var all []*delegation.Delegation
	for _, key := range keys {
		if !strings.HasSuffix(key, ".yaml") {
			continue
		}
		data, err := r.storage.Read(ctx, key)
		if err != nil {
			continue
		}
		var d delegation.Delegation
		if err := yaml.Unmarshal(data, &d); err != nil {
			continue
		}
		all = append(all, &d)
	}
	return all, nil
}
