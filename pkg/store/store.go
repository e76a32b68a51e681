package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mossgate/prattle/pkg/markov"
)

// SetupSchema initializes the tables the store needs in the provided
// database. It should be called once before any other operations are
// performed; it is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    token_type TEXT NOT NULL,
    stop_tokens TEXT NOT NULL
);
`
		schemaChains = `
CREATE TABLE IF NOT EXISTS markov_chains (
    model_id INTEGER NOT NULL,
    context TEXT NOT NULL,
    next_token TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, context, next_token)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}
	if _, err = tx.Exec(schemaChains); err != nil {
		return fmt.Errorf("could not create chains schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store reads and writes markov models in a SQLite database. It holds the
// database connection and prepared SQL statements for efficient access.
type Store struct {
	db               *sql.DB
	stmtGetModel     *sql.Stmt
	stmtListModels   *sql.Stmt
	stmtUpsertModel  *sql.Stmt
	stmtGetChains    *sql.Stmt
	stmtUpsertChain  *sql.Stmt
	stmtDeleteChains *sql.Stmt
	stmtDeleteModel  *sql.Stmt
	logger           *slog.Logger
}

// New creates a Store over a database whose schema was set up with
// SetupSchema. It pre-compiles all necessary SQL statements, returning an
// error if any preparation fails.
func New(db *sql.DB) (*Store, error) {
	stmtGetModel, err := db.Prepare(`SELECT model_id, model_order, token_type, stop_tokens FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListModels, err := db.Prepare(`SELECT model_name, model_order, token_type, stop_tokens FROM markov_models;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertModel, err := db.Prepare(`
INSERT INTO markov_models (model_name, model_order, token_type, stop_tokens) VALUES (?, ?, ?, ?)
ON CONFLICT(model_name) DO UPDATE SET model_order = excluded.model_order, token_type = excluded.token_type, stop_tokens = excluded.stop_tokens
RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetChains, err := db.Prepare(`SELECT context, next_token, frequency FROM markov_chains WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertChain, err := db.Prepare(`
INSERT INTO markov_chains (model_id, context, next_token, frequency) VALUES (?, ?, ?, ?)
ON CONFLICT(model_id, context, next_token) DO UPDATE SET frequency = frequency + excluded.frequency;`)
	if err != nil {
		return nil, err
	}

	stmtDeleteChains, err := db.Prepare(`DELETE FROM markov_chains WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtDeleteModel, err := db.Prepare(`DELETE FROM markov_models WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:               db,
		stmtGetModel:     stmtGetModel,
		stmtListModels:   stmtListModels,
		stmtUpsertModel:  stmtUpsertModel,
		stmtGetChains:    stmtGetChains,
		stmtUpsertChain:  stmtUpsertChain,
		stmtDeleteChains: stmtDeleteChains,
		stmtDeleteModel:  stmtDeleteModel,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the store. It should be
// called when the store is no longer needed to free up database resources.
func (s *Store) Close() {
	_ = s.stmtGetModel.Close()
	_ = s.stmtListModels.Close()
	_ = s.stmtUpsertModel.Close()
	_ = s.stmtGetChains.Close()
	_ = s.stmtUpsertChain.Close()
	_ = s.stmtDeleteChains.Close()
	_ = s.stmtDeleteModel.Close()
}

// SetLogger sets the logger for the store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save stores a complete snapshot of the model under the given name,
// replacing any previous contents. The operation is transactional: on error
// the stored model is left as it was.
func (s *Store) Save(ctx context.Context, name string, m *markov.Model) error {
	config := m.Config()
	stopTokens, err := json.Marshal(config.StopTokens)
	if err != nil {
		return fmt.Errorf("failed to encode stop tokens: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	err = tx.StmtContext(ctx, s.stmtUpsertModel).
		QueryRowContext(ctx, name, config.Order, string(config.TokenType), string(stopTokens)).
		Scan(&modelID)
	if err != nil {
		return fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}

	if _, err = tx.StmtContext(ctx, s.stmtDeleteChains).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to clear chains for model '%s': %w", name, err)
	}

	table := m.Table()
	stmtInsert := tx.StmtContext(ctx, s.stmtUpsertChain)
	for key, successors := range table {
		for next, count := range successors {
			if _, err = stmtInsert.ExecContext(ctx, modelID, key, next, count); err != nil {
				return fmt.Errorf("failed to insert chain link (%q -> %q): %w", key, next, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("contexts", len(table)),
		slog.Int("transitions", table.Links()),
	)

	return tx.Commit()
}

// MergeInto folds a model's observations into the model stored under the
// given name, summing frequencies where both sides hold the same (context,
// successor) pair. If no model is stored under the name, one is created. The
// stored model must share order and token type with m.
func (s *Store) MergeInto(ctx context.Context, name string, m *markov.Model) error {
	config := m.Config()

	stored, err := s.getConfig(ctx, name)
	switch {
	case err == nil:
		if stored.Order != config.Order || stored.TokenType != config.TokenType {
			return fmt.Errorf("stored model '%s' is order %d/%s, cannot merge order %d/%s",
				name, stored.Order, stored.TokenType, config.Order, config.TokenType)
		}
	case errors.Is(err, sql.ErrNoRows):
		// First write under this name; fall through and create it.
	default:
		return fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	stopTokens, err := json.Marshal(config.StopTokens)
	if err != nil {
		return fmt.Errorf("failed to encode stop tokens: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for merge: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	err = tx.StmtContext(ctx, s.stmtUpsertModel).
		QueryRowContext(ctx, name, config.Order, string(config.TokenType), string(stopTokens)).
		Scan(&modelID)
	if err != nil {
		return fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}

	table := m.Table()
	stmtUpsert := tx.StmtContext(ctx, s.stmtUpsertChain)
	var merged int
	for key, successors := range table {
		for next, count := range successors {
			if _, err = stmtUpsert.ExecContext(ctx, modelID, key, next, count); err != nil {
				return fmt.Errorf("failed to merge chain link (%q -> %q): %w", key, next, err)
			}
			merged++
		}
	}

	s.logger.InfoContext(ctx, "model merged",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("transitions_merged", merged),
	)

	return tx.Commit()
}

// Load reconstructs the model stored under the given name. It returns
// sql.ErrNoRows (wrapped) if no model is stored under that name.
func (s *Store) Load(ctx context.Context, name string) (*markov.Model, error) {
	var modelID int
	var order int
	var tokenType string
	var stopTokensJSON string
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &order, &tokenType, &stopTokensJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load model '%s': %w", name, err)
	}

	var stopTokens []string
	if err = json.Unmarshal([]byte(stopTokensJSON), &stopTokens); err != nil {
		return nil, fmt.Errorf("failed to decode stop tokens for model '%s': %w", name, err)
	}
	if stopTokens == nil {
		stopTokens = []string{}
	}

	m, err := markov.NewModel(markov.ModelConfig{
		Order:      order,
		TokenType:  markov.TokenType(tokenType),
		StopTokens: stopTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("stored model '%s' has an invalid configuration: %w", name, err)
	}

	rows, err := s.stmtGetChains.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chains for model '%s': %w", name, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	table := make(markov.ChainTable)
	for rows.Next() {
		var key, next string
		var count int
		if err = rows.Scan(&key, &next, &count); err != nil {
			return nil, err
		}
		succ, ok := table[key]
		if !ok {
			succ = make(map[string]int)
			table[key] = succ
		}
		succ[next] = count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	m.MergeTable(table)
	return m, nil
}

// List returns the configurations of all stored models, keyed by name.
func (s *Store) List(ctx context.Context) (map[string]markov.ModelConfig, error) {
	rows, err := s.stmtListModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]markov.ModelConfig)
	for rows.Next() {
		var name, tokenType, stopTokensJSON string
		var order int
		if err = rows.Scan(&name, &order, &tokenType, &stopTokensJSON); err != nil {
			return nil, err
		}
		var stopTokens []string
		if err = json.Unmarshal([]byte(stopTokensJSON), &stopTokens); err != nil {
			return nil, fmt.Errorf("failed to decode stop tokens for model '%s': %w", name, err)
		}
		models[name] = markov.ModelConfig{
			Order:      order,
			TokenType:  markov.TokenType(tokenType),
			StopTokens: stopTokens,
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Delete removes a stored model and all of its chain data. The operation is
// performed within a transaction. Deleting a name that is not stored is not
// an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	var modelID int
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, new(int), new(string), new(string))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for delete: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtDeleteChains).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to remove chains for model '%s': %w", name, err)
	}
	if _, err = tx.StmtContext(ctx, s.stmtDeleteModel).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("failed to remove model '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "model removed",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)

	return tx.Commit()
}

// getConfig fetches a stored model's configuration without its chains.
func (s *Store) getConfig(ctx context.Context, name string) (markov.ModelConfig, error) {
	var modelID, order int
	var tokenType, stopTokensJSON string
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&modelID, &order, &tokenType, &stopTokensJSON)
	if err != nil {
		return markov.ModelConfig{}, err
	}
	var stopTokens []string
	if err = json.Unmarshal([]byte(stopTokensJSON), &stopTokens); err != nil {
		return markov.ModelConfig{}, err
	}
	return markov.ModelConfig{
		Order:      order,
		TokenType:  markov.TokenType(tokenType),
		StopTokens: stopTokens,
	}, nil
}
