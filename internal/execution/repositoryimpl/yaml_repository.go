package repositoryimpl

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chainagent/chainagent/internal/execution"
	"github.com/chainagent/chainagent/pkg/cerr"
	"github.com/chainagent/chainagent/pkg/storage"
)

const executionsPrefix = "executions"

// YAMLRepository stores one file per record. Record IDs are ULIDs, so
// lexicographic key order is append order.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

var _ execution.Repository = (*YAMLRepository)(nil)

// yamlRecord carries the 18-decimal output amount as a decimal string;
// yaml.v3 cannot see inside big.Int.
type yamlRecord struct {
	ID        string    `yaml:"id"`
	User      string    `yaml:"user"`
	Executor  string    `yaml:"executor"`
	TokenIn   string    `yaml:"token_in"`
	TokenOut  string    `yaml:"token_out"`
	AmountIn  int64     `yaml:"amount_in"`
	AmountOut string    `yaml:"amount_out"`
	Price     int64     `yaml:"price"`
	Timestamp time.Time `yaml:"timestamp"`
}

func toYAML(rec *execution.Record) *yamlRecord {
	return &yamlRecord{
		ID:        rec.ID,
		User:      rec.User,
		Executor:  rec.Executor,
		TokenIn:   rec.TokenIn,
		TokenOut:  rec.TokenOut,
		AmountIn:  rec.AmountIn,
		AmountOut: rec.AmountOut.String(),
		Price:     rec.Price,
		Timestamp: rec.Timestamp,
	}
}

func (y *yamlRecord) toRecord() (*execution.Record, error) {
	amountOut, ok := new(big.Int).SetString(y.AmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount_out %q in record %s", y.AmountOut, y.ID)
	}
	return &execution.Record{
		ID:        y.ID,
		User:      y.User,
		Executor:  y.Executor,
		TokenIn:   y.TokenIn,
		TokenOut:  y.TokenOut,
		AmountIn:  y.AmountIn,
		AmountOut: amountOut,
		Price:     y.Price,
		Timestamp: y.Timestamp,
	}, nil
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", executionsPrefix, id)
}

func (r *YAMLRepository) Append(ctx context.Context, rec *execution.Record) error {
	exists, err := r.storage.Exists(ctx, path(rec.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("execution record", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "execution record already exists", nil)
	}
	data, err := yaml.Marshal(toYAML(rec))
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal execution record: %w", err))
	}
	if err := r.storage.Write(ctx, path(rec.ID), data); err != nil {
		return cerr.WrapStorageWriteError("execution record", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*execution.Record, error) {
	keys, err := r.storage.List(ctx, executionsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("execution records", err)
	}
	sort.Strings(keys)

	var all []*execution.Record
	for _, key := range keys {
		data, err := r.storage.Read(ctx, key)
		if err != nil {
			continue
		}
		var y yamlRecord
		if err := yaml.Unmarshal(data, &y); err != nil {
			continue
		}
		rec, err := y.toRecord()
		if err != nil {
			continue
		}
		all = append(all, rec)
	}
	return all, nil
}
