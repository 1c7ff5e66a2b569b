// Package sqlstore implements a storage.Adapter on top of
// database/sql, the "wide-column store" alternative to the file-tree
// backend. It mirrors the teacher's db package: a validated Config,
// a pooled *sql.DB, CREATE TABLE IF NOT EXISTS migrations run on
// startup, and parameterised queries throughout.
//
// Two drivers are wired behind the same schema: lib/pq for Postgres
// (the teacher's own driver) and modernc.org/sqlite, a pure-Go driver,
// for a single-binary deployment that needs no external database
// process.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/apperr"
	"github.com/agora-project/agorad/internal/model"
)

// Driver selects the underlying database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config holds connection parameters. For DriverSQLite, DSN is a file
// path (or ":memory:") and the Host/Port/User/Password/DBName/SSLMode
// fields are ignored. For DriverPostgres, DSN is not read: the
// connection is built from Host, Port, User, Password, DBName and
// SSLMode.
type Config struct {
	Driver   Driver
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func validateConfig(cfg Config) error {
	if cfg.Driver == DriverSQLite {
		if cfg.DSN == "" {
			return fmt.Errorf("sqlstore: sqlite dsn cannot be empty")
		}
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sqlstore: database host cannot be empty")
	}
	if net.ParseIP(cfg.Host) == nil {
		hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-.]{0,253}[a-zA-Z0-9])?$`)
		if !hostnameRegex.MatchString(cfg.Host) {
			return fmt.Errorf("sqlstore: invalid database host: %s", cfg.Host)
		}
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("sqlstore: invalid database port: %s", cfg.Port)
	}
	identRegex := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	if cfg.User == "" || !identRegex.MatchString(cfg.User) {
		return fmt.Errorf("sqlstore: invalid database user: %s", cfg.User)
	}
	if cfg.DBName == "" || !identRegex.MatchString(cfg.DBName) {
		return fmt.Errorf("sqlstore: invalid database name: %s", cfg.DBName)
	}
	return nil
}

func dsn(cfg Config) (driverName, dataSourceName string) {
	if cfg.Driver == DriverSQLite {
		return "sqlite", cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return "postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// Store is a database/sql backed storage.Adapter.
type Store struct {
	db *sql.DB
}

// New validates cfg, opens the pool, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "invalid storage config", err)
	}
	driverName, dataSourceName := dsn(cfg)
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "open database", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindStorage, "migrate schema", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS descriptions (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (application, version, block)
		)`,
		`CREATE TABLE IF NOT EXISTS does (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			fingerprint TEXT NOT NULL, remaining INTEGER NOT NULL,
			PRIMARY KEY (application, version, block, fingerprint)
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			sec BIGINT NOT NULL, nsec BIGINT NOT NULL, payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			metric TEXT NOT NULL, blob BYTEA,
			PRIMARY KEY (application, version, block, metric)
		)`,
		`CREATE TABLE IF NOT EXISTS clusters (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (application, version, block)
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			application TEXT NOT NULL, version TEXT NOT NULL, block TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (application, version, block)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) StoreDescription(ctx context.Context, id aid.AID, d model.Description) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "encode description", err)
	}
	_, err = s.db.ExecContext(ctx, upsert("descriptions"), id.Application, id.Version, id.Block, string(blob))
	return wrapExecErr(err, "store description")
}

func (s *Store) LoadDescription(ctx context.Context, id aid.AID) (model.Description, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM descriptions WHERE application=$1 AND version=$2 AND block=$3`,
		id.Application, id.Version, id.Block).Scan(&payload)
	if err == sql.ErrNoRows {
		return model.Description{}, false, nil
	}
	if err != nil {
		return model.Description{}, false, apperr.Wrap(apperr.KindStorage, "load description", err)
	}
	var d model.Description
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return model.Description{}, false, apperr.Wrap(apperr.KindStorage, "decode description", err)
	}
	return d, true, nil
}

func (s *Store) StoreDoE(ctx context.Context, id aid.AID, remaining map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "begin doe transaction", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM does WHERE application=$1 AND version=$2 AND block=$3`,
		id.Application, id.Version, id.Block); err != nil {
		return apperr.Wrap(apperr.KindStorage, "clear doe", err)
	}
	for fp, n := range remaining {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO does (application, version, block, fingerprint, remaining) VALUES ($1,$2,$3,$4,$5)`,
			id.Application, id.Version, id.Block, fp, n); err != nil {
			return apperr.Wrap(apperr.KindStorage, "insert doe row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, "commit doe transaction", err)
	}
	return nil
}

func (s *Store) LoadDoE(ctx context.Context, id aid.AID) (map[string]int, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, remaining FROM does WHERE application=$1 AND version=$2 AND block=$3`,
		id.Application, id.Version, id.Block)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, "load doe", err)
	}
	defer rows.Close()
	out := map[string]int{}
	found := false
	for rows.Next() {
		var fp string
		var n int
		if err := rows.Scan(&fp, &n); err != nil {
			return nil, false, apperr.Wrap(apperr.KindStorage, "scan doe row", err)
		}
		out[fp] = n
		found = true
	}
	return out, found, rows.Err()
}

func (s *Store) AppendObservation(ctx context.Context, id aid.AID, o model.Observation) error {
	blob, err := json.Marshal(o)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "encode observation", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO observations (application, version, block, sec, nsec, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		id.Application, id.Version, id.Block, o.Sec, o.Nsec, string(blob))
	return wrapExecErr(err, "append observation")
}

func (s *Store) LoadObservations(ctx context.Context, id aid.AID) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM observations WHERE application=$1 AND version=$2 AND block=$3 ORDER BY sec, nsec`,
		id.Application, id.Version, id.Block)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "load observations", err)
	}
	defer rows.Close()
	var out []model.Observation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "scan observation", err)
		}
		var o model.Observation
		if err := json.Unmarshal([]byte(payload), &o); err == nil {
			out = append(out, o)
		}
	}
	return out, rows.Err()
}

func (s *Store) StoreModel(ctx context.Context, id aid.AID, metric string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, upsertModel(), id.Application, id.Version, id.Block, metric, blob)
	return wrapExecErr(err, "store model")
}

func (s *Store) LoadModel(ctx context.Context, id aid.AID, metric string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM models WHERE application=$1 AND version=$2 AND block=$3 AND metric=$4`,
		id.Application, id.Version, id.Block, metric).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, "load model", err)
	}
	return blob, true, nil
}

func (s *Store) IsModelValid(ctx context.Context, id aid.AID, metric string) (bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM models WHERE application=$1 AND version=$2 AND block=$3 AND metric=$4`,
		id.Application, id.Version, id.Block, metric).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStorage, "check model validity", err)
	}
	return len(blob) > 0, nil
}

func (s *Store) Erase(ctx context.Context, id aid.AID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "begin erase transaction", err)
	}
	defer tx.Rollback()
	tables := []string{"descriptions", "does", "observations", "models", "clusters", "predictions"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE application=$1 AND version=$2 AND block=$3`, table),
			id.Application, id.Version, id.Block); err != nil {
			return apperr.Wrap(apperr.KindStorage, "erase "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStorage, "commit erase transaction", err)
	}
	return nil
}

func (s *Store) StoreCluster(ctx context.Context, id aid.AID, c model.Cluster) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "encode cluster", err)
	}
	_, err = s.db.ExecContext(ctx, upsert("clusters"), id.Application, id.Version, id.Block, string(blob))
	return wrapExecErr(err, "store cluster")
}

func (s *Store) LoadCluster(ctx context.Context, id aid.AID) (model.Cluster, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM clusters WHERE application=$1 AND version=$2 AND block=$3`,
		id.Application, id.Version, id.Block).Scan(&payload)
	if err == sql.ErrNoRows {
		return model.Cluster{}, false, nil
	}
	if err != nil {
		return model.Cluster{}, false, apperr.Wrap(apperr.KindStorage, "load cluster", err)
	}
	var c model.Cluster
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return model.Cluster{}, false, apperr.Wrap(apperr.KindStorage, "decode cluster", err)
	}
	return c, true, nil
}

func (s *Store) StorePrediction(ctx context.Context, id aid.AID, p model.Prediction) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "encode prediction", err)
	}
	_, err = s.db.ExecContext(ctx, upsert("predictions"), id.Application, id.Version, id.Block, string(blob))
	return wrapExecErr(err, "store prediction")
}

func (s *Store) LoadPrediction(ctx context.Context, id aid.AID) (model.Prediction, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM predictions WHERE application=$1 AND version=$2 AND block=$3`,
		id.Application, id.Version, id.Block).Scan(&payload)
	if err == sql.ErrNoRows {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, apperr.Wrap(apperr.KindStorage, "load prediction", err)
	}
	var p model.Prediction
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return model.Prediction{}, false, apperr.Wrap(apperr.KindStorage, "decode prediction", err)
	}
	return p, true, nil
}

func (s *Store) Applications(ctx context.Context) ([]aid.AID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT application, version, block FROM descriptions`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "list applications", err)
	}
	defer rows.Close()
	var out []aid.AID
	for rows.Next() {
		var a aid.AID
		if err := rows.Scan(&a.Application, &a.Version, &a.Block); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "scan application", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SupportsConcurrency() bool { return true }

func (s *Store) Close() error { return s.db.Close() }

func upsert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (application, version, block, payload) VALUES ($1,$2,$3,$4)
		ON CONFLICT (application, version, block) DO UPDATE SET payload = excluded.payload`, table)
}

func upsertModel() string {
	return `INSERT INTO models (application, version, block, metric, blob) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (application, version, block, metric) DO UPDATE SET blob = excluded.blob`
}

func wrapExecErr(err error, action string) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindStorage, action, err)
}
