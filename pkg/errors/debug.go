package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDiagnostics are the server-side fields of a Postgres error, whichever
// driver raised it.
type PGDiagnostics struct {
	SQLState   string
	Constraint string
	Table      string
	Detail     string
}

// Class is the two-character SQLSTATE class, e.g. "23" for integrity
// violations and "40" for serialization failures.
func (p PGDiagnostics) Class() string {
	if len(p.SQLState) < 2 {
		return ""
	}
	return p.SQLState[:2]
}

// Diagnostics describe a failure for logs only; nothing here is returned to
// clients.
type Diagnostics struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres *PGDiagnostics
}

// Diagnose walks err's chain and extracts pgx or lib/pq error fields.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Postgres = postgresDiagnostics(err)
	return d
}

func postgresDiagnostics(err error) *PGDiagnostics {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDiagnostics{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDiagnostics{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}

// Fields renders the diagnostics as logger fields, omitting empty values.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.SQLState
		fields["pg_class"] = pg.Class()
		if pg.Constraint != "" {
			fields["pg_constraint"] = pg.Constraint
		}
		if pg.Table != "" {
			fields["pg_table"] = pg.Table
		}
		if pg.Detail != "" {
			fields["pg_detail"] = pg.Detail
		}
	}
	return fields
}
