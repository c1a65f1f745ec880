package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// Mirror replicates observations into Postgres for ad-hoc analytics. The
// CSV ledger stays the source of truth; mirroring is best-effort and a
// mirror failure never fails a run.
type Mirror struct {
	pool   *pgxpool.Pool
	schema string
	batch  int
}

// MirrorOptions configures the Postgres mirror.
type MirrorOptions struct {
	DSN       string
	Schema    string
	BatchSize int
	MaxConns  int
}

// NewMirror connects a pgx pool to the mirror table, creating it if
// needed.
func NewMirror(ctx context.Context, opts MirrorOptions) (*Mirror, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger mirror dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger mirror connect: %w", err)
	}

	schema := opts.Schema
	if schema == "" {
		schema = "public"
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 200
	}

	m := &Mirror{pool: pool, schema: schema, batch: batch}
	if err := m.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) table() string {
	return fmt.Sprintf(`"%s".price_observations`, m.schema)
}

func (m *Mirror) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+m.table()+` (
		observed_at timestamptz NOT NULL,
		retailer    text        NOT NULL,
		cigar_id    text        NOT NULL,
		price       numeric(10,2) NOT NULL,
		in_stock    boolean     NOT NULL,
		box_qty     integer,
		brand       text,
		line        text,
		wrapper     text,
		vitola      text,
		size        text,
		url         text,
		PRIMARY KEY (retailer, cigar_id, observed_at)
	)`)
	return err
}

// Replicate batch-inserts observations; duplicate rows are skipped so the
// mirror can be refilled from the CSV ledger idempotently.
func (m *Mirror) Replicate(ctx context.Context, observations []domain.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	total := 0
	stmt := `INSERT INTO ` + m.table() + `
		(observed_at, retailer, cigar_id, price, in_stock, box_qty,
		 brand, line, wrapper, vitola, size, url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (retailer, cigar_id, observed_at) DO NOTHING`

	for i := 0; i < len(observations); i += m.batch {
		j := i + m.batch
		if j > len(observations) {
			j = len(observations)
		}

		b := &pgx.Batch{}
		for _, obs := range observations[i:j] {
			var qty *int
			if obs.BoxQty > 0 {
				q := obs.BoxQty
				qty = &q
			}
			b.Queue(stmt,
				obs.Timestamp.UTC(), obs.Retailer, obs.CigarID, obs.Price,
				obs.InStock, qty, obs.Brand, obs.Line, obs.Wrapper,
				obs.Vitola, obs.Size, obs.URL,
			)
		}

		br := m.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, err
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, err
		}
	}

	logrus.WithField("rows", total).Debug("ledger mirror replicated")
	return total, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() {
	m.pool.Close()
}
