package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/spotter/internal/ir"
)

// InsertConfig writes the global configuration.
// Returns inserted=false if the configuration already exists; the stored
// row is left unchanged.
func (t *Tx) InsertConfig(ctx context.Context, cfg ir.GlobalConfig) (inserted bool, err error) {
	executors, err := json.Marshal(accountsOrEmpty(cfg.Executors))
	if err != nil {
		return false, fmt.Errorf("insert config: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO config (id, home_chain_id, admin, bootstrap_executors, initialized_seq)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		int64(cfg.HomeChainID),
		cfg.Admin.Bytes(),
		string(executors),
		cfg.InitializedSeq,
	)
	if err != nil {
		return false, fmt.Errorf("insert config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert config: rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReadConfig returns the global configuration.
// Returns sql.ErrNoRows if the ledger is not initialised.
func (t *Tx) ReadConfig(ctx context.Context) (ir.GlobalConfig, error) {
	var (
		cfg       ir.GlobalConfig
		homeChain int64
		admin     []byte
		executors string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT home_chain_id, admin, bootstrap_executors, initialized_seq
		FROM config
		WHERE id = 1
	`).Scan(&homeChain, &admin, &executors, &cfg.InitializedSeq)
	if err != nil {
		return ir.GlobalConfig{}, err
	}

	cfg.HomeChainID = uint64(homeChain)
	cfg.Admin = ir.AccountFromBytes(admin)
	if err := json.Unmarshal([]byte(executors), &cfg.Executors); err != nil {
		return ir.GlobalConfig{}, fmt.Errorf("read config: bootstrap executors: %w", err)
	}
	return cfg, nil
}

func accountsOrEmpty(a []ir.Account) []ir.Account {
	if a == nil {
		return []ir.Account{}
	}
	return a
}
