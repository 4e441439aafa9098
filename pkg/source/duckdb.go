package source

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// DuckDBSource reads locus data from a DuckDB database. Measurements live in
// long format so heterogeneous per-measurement schemas need no table
// migration when upstream adds a field:
//
//	measurements(locus_id BIGINT, alert_id BIGINT, mjd DOUBLE,
//	             field VARCHAR, kind VARCHAR, num_value DOUBLE, str_value VARCHAR)
//	catalog_matches(locus_id BIGINT, catalog VARCHAR, attrs JSON)
type DuckDBSource struct {
	db *sql.DB
}

// NewDuckDBSource opens the database at path and verifies the expected
// tables exist.
func NewDuckDBSource(path string) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceQuery, "failed to open duckdb").
			WithContext("path", path)
	}

	for _, table := range []string{"measurements", "catalog_matches"} {
		var n int
		if err := db.QueryRow(`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, table).Scan(&n); err != nil || n == 0 {
			db.Close()
			return nil, errors.Wrap(err, errors.CodeSourceQuery, "required table missing").
				WithContext("table", table).
				WithContext("path", path)
		}
	}

	return &DuckDBSource{db: db}, nil
}

// NewDuckDBSourceFromDB wraps an existing connection (for tests).
func NewDuckDBSourceFromDB(db *sql.DB) *DuckDBSource {
	return &DuckDBSource{db: db}
}

// Get assembles the locus from the measurement and catalog tables.
func (s *DuckDBSource) Get(ctx context.Context, id int64) (*model.Locus, error) {
	locus := &model.Locus{ID: id, Matches: make(map[string][]model.CatalogMatch)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id, mjd, field, kind, num_value, str_value
		FROM measurements
		WHERE locus_id = ?
		ORDER BY mjd, alert_id`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceQuery, "measurement query failed").
			WithContext("locus_id", id)
	}
	defer rows.Close()

	var current *model.Measurement
	for rows.Next() {
		var (
			alertID  int64
			mjd      float64
			field    string
			kind     string
			numValue sql.NullFloat64
			strValue sql.NullString
		)
		if err := rows.Scan(&alertID, &mjd, &field, &kind, &numValue, &strValue); err != nil {
			return nil, errors.Wrap(err, errors.CodeSourceQuery, "measurement scan failed").
				WithContext("locus_id", id)
		}

		if current == nil || current.AlertID != alertID {
			locus.Measurements = append(locus.Measurements, model.Measurement{
				AlertID: alertID,
				MJD:     mjd,
				Fields:  make(map[string]model.Value),
			})
			current = &locus.Measurements[len(locus.Measurements)-1]
		}
		current.Fields[field] = decodeValue(kind, numValue, strValue)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceQuery, "measurement iteration failed").
			WithContext("locus_id", id)
	}

	if len(locus.Measurements) == 0 {
		return nil, errors.LocusNotFound(id)
	}

	if err := s.loadMatches(ctx, locus); err != nil {
		return nil, err
	}

	locus.Sort()
	return locus, nil
}

// loadMatches fills the catalog match set. A catalog with no rows never
// appears as a key.
func (s *DuckDBSource) loadMatches(ctx context.Context, locus *model.Locus) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT catalog, attrs
		FROM catalog_matches
		WHERE locus_id = ?
		ORDER BY catalog`, locus.ID)
	if err != nil {
		return errors.Wrap(err, errors.CodeSourceQuery, "catalog query failed").
			WithContext("locus_id", locus.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			catalog string
			attrs   string
		)
		if err := rows.Scan(&catalog, &attrs); err != nil {
			return errors.Wrap(err, errors.CodeSourceQuery, "catalog scan failed").
				WithContext("locus_id", locus.ID)
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(attrs), &raw); err != nil {
			return errors.Wrap(err, errors.CodeSourceQuery, "catalog attrs decode failed").
				WithContext("locus_id", locus.ID).
				WithContext("catalog", catalog)
		}

		match := make(model.CatalogMatch, len(raw))
		for k, v := range raw {
			// JSON numbers arrive as float64.
			if tagged, ok := model.FromNative(v); ok {
				match[k] = tagged
			} else {
				match[k] = model.Null
			}
		}
		locus.Matches[catalog] = append(locus.Matches[catalog], match)
	}
	return rows.Err()
}

// IDs lists distinct locus identifiers, ascending.
func (s *DuckDBSource) IDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT locus_id FROM measurements ORDER BY locus_id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceQuery, "id query failed")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.CodeSourceQuery, "id scan failed")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *DuckDBSource) Close() error {
	return s.db.Close()
}

// decodeValue maps a long-format row back to a tagged value.
func decodeValue(kind string, num sql.NullFloat64, str sql.NullString) model.Value {
	switch kind {
	case "int":
		if num.Valid {
			return model.IntValue(int64(num.Float64))
		}
	case "float":
		if num.Valid {
			return model.FloatValue(num.Float64)
		}
	case "string":
		if str.Valid {
			return model.StringValue(str.String)
		}
	case "bool":
		if num.Valid {
			return model.BoolValue(num.Float64 != 0)
		}
	}
	return model.Null
}
