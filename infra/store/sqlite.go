package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/freightpool/absorb/core/model"
	corestore "github.com/freightpool/absorb/core/store"
)

// SQLiteStore persists absorption entities to a SQLite database. Each entity
// row carries the full record as JSON next to the columns the queries filter
// on, so the schema stays stable while the domain structs evolve.
type SQLiteStore struct {
	db *sql.DB
	queries
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trucks (
	id TEXT PRIMARY KEY,
	operator_id TEXT,
	available INTEGER,
	record TEXT
);
CREATE TABLE IF NOT EXISTS drivers (
	id TEXT PRIMARY KEY,
	record TEXT
);
CREATE TABLE IF NOT EXISTS routes (
	id TEXT PRIMARY KEY,
	truck_id TEXT,
	status TEXT,
	record TEXT
);
CREATE TABLE IF NOT EXISTS hubs (
	id TEXT PRIMARY KEY,
	record TEXT
);
CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	operator_id TEXT,
	route_id TEXT,
	status TEXT,
	pickup_window INTEGER,
	created_at INTEGER,
	record TEXT
);
CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	route1_id TEXT,
	route2_id TEXT,
	status TEXT,
	proposed_at INTEGER,
	expires_at INTEGER,
	record TEXT
);
CREATE TABLE IF NOT EXISTS transfers (
	id TEXT PRIMARY KEY,
	status TEXT,
	record TEXT
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	driver_id TEXT,
	status TEXT,
	record TEXT
);
CREATE INDEX IF NOT EXISTS idx_deliveries_route ON deliveries(route_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_pending ON deliveries(operator_id, status);
CREATE INDEX IF NOT EXISTS idx_opportunities_pair ON opportunities(route1_id, route2_id);
CREATE INDEX IF NOT EXISTS idx_documents_driver ON documents(driver_id, status);
`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, queries: queries{q: db}}, nil
}

// WithTx runs fn inside a single SQL transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(corestore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqlTx{tx: tx, queries: queries{q: tx}}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Seed helpers mirror the in-memory store, used by the simulator seeding path.

func (s *SQLiteStore) PutTruck(ctx context.Context, t model.Truck) error {
	return upsert(ctx, s.db, `INSERT INTO trucks (id, operator_id, available, record) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET operator_id=excluded.operator_id, available=excluded.available, record=excluded.record`,
		t, t.ID, t.OperatorID, boolInt(t.Available))
}

func (s *SQLiteStore) PutDriver(ctx context.Context, d model.Driver) error {
	return upsert(ctx, s.db, `INSERT INTO drivers (id, record) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET record=excluded.record`, d, d.ID)
}

func (s *SQLiteStore) PutRoute(ctx context.Context, r model.Route) error {
	return upsert(ctx, s.db, `INSERT INTO routes (id, truck_id, status, record) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET truck_id=excluded.truck_id, status=excluded.status, record=excluded.record`,
		r, r.ID, r.TruckID, string(r.Status))
}

func (s *SQLiteStore) PutHub(ctx context.Context, h model.VirtualHub) error {
	return upsert(ctx, s.db, `INSERT INTO hubs (id, record) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET record=excluded.record`, h, h.ID)
}

func (s *SQLiteStore) PutDelivery(ctx context.Context, d model.Delivery) error {
	return upsert(ctx, s.db, `INSERT INTO deliveries (id, operator_id, route_id, status, pickup_window, created_at, record) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET operator_id=excluded.operator_id, route_id=excluded.route_id, status=excluded.status,
		pickup_window=excluded.pickup_window, created_at=excluded.created_at, record=excluded.record`,
		d, d.ID, d.OperatorID, d.RouteID, string(d.Status), d.PickupWindow.Unix(), d.CreatedAt.Unix())
}

func (s *SQLiteStore) PutDocument(ctx context.Context, d model.EWayBill) error {
	return upsert(ctx, s.db, `INSERT INTO documents (id, driver_id, status, record) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET driver_id=excluded.driver_id, status=excluded.status, record=excluded.record`,
		d, d.ID, d.DriverID, string(d.Status))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, e execer, query string, rec any, args ...any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, query, append(args, string(b))...)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// querier is satisfied by both *sql.DB and *sql.Tx so read queries run inside
// and outside transactions unchanged.
type querier interface {
	execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

func getRecord[T any](ctx context.Context, q querier, table, id string) (T, error) {
	var out T
	var data string
	err := q.QueryRowContext(ctx, `SELECT record FROM `+table+` WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return out, corestore.ErrNotFound
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return out, fmt.Errorf("unmarshal %s record: %w", table, err)
	}
	return out, nil
}

func listRecords[T any](ctx context.Context, q querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s queries) Truck(ctx context.Context, id string) (model.Truck, error) {
	return getRecord[model.Truck](ctx, s.q, "trucks", id)
}

func (s queries) Driver(ctx context.Context, id string) (model.Driver, error) {
	return getRecord[model.Driver](ctx, s.q, "drivers", id)
}

func (s queries) Route(ctx context.Context, id string) (model.Route, error) {
	return getRecord[model.Route](ctx, s.q, "routes", id)
}

func (s queries) Hub(ctx context.Context, id string) (model.VirtualHub, error) {
	return getRecord[model.VirtualHub](ctx, s.q, "hubs", id)
}

func (s queries) Hubs(ctx context.Context) ([]model.VirtualHub, error) {
	return listRecords[model.VirtualHub](ctx, s.q, `SELECT record FROM hubs ORDER BY rowid`)
}

func (s queries) Opportunity(ctx context.Context, id string) (model.Opportunity, error) {
	return getRecord[model.Opportunity](ctx, s.q, "opportunities", id)
}

func (s queries) Transfer(ctx context.Context, id string) (model.Transfer, error) {
	return getRecord[model.Transfer](ctx, s.q, "transfers", id)
}

func (s queries) DeliveriesByID(ctx context.Context, ids []string) ([]model.Delivery, error) {
	out := make([]model.Delivery, 0, len(ids))
	for _, id := range ids {
		d, err := getRecord[model.Delivery](ctx, s.q, "deliveries", id)
		if errors.Is(err, corestore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s queries) DeliveriesByRoute(ctx context.Context, routeID string) ([]model.Delivery, error) {
	return listRecords[model.Delivery](ctx, s.q,
		`SELECT record FROM deliveries WHERE route_id = ? ORDER BY rowid`, routeID)
}

func (s queries) PendingDeliveries(ctx context.Context, operatorID string) ([]model.Delivery, error) {
	return listRecords[model.Delivery](ctx, s.q,
		`SELECT record FROM deliveries WHERE operator_id = ? AND status = ? ORDER BY pickup_window, created_at`,
		operatorID, string(model.DeliveryPending))
}

func (s queries) AvailableTrucks(ctx context.Context, operatorID string) ([]model.Truck, error) {
	return listRecords[model.Truck](ctx, s.q,
		`SELECT record FROM trucks WHERE operator_id = ? AND available = 1 ORDER BY rowid`, operatorID)
}

func (s queries) ActiveFleet(ctx context.Context) ([]corestore.FleetEntry, error) {
	trucks, err := listRecords[model.Truck](ctx, s.q, `SELECT record FROM trucks WHERE available = 1 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	var out []corestore.FleetEntry
	for _, tr := range trucks {
		if !tr.HasPosition {
			continue
		}
		drv, err := s.Driver(ctx, tr.DriverID)
		if errors.Is(err, corestore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !drv.OnRoad() {
			continue
		}
		routes, err := listRecords[model.Route](ctx, s.q,
			`SELECT record FROM routes WHERE truck_id = ? AND status = ? ORDER BY rowid LIMIT 1`,
			tr.ID, string(model.RouteActive))
		if err != nil {
			return nil, err
		}
		if len(routes) == 0 {
			continue
		}
		deliveries, err := s.DeliveriesByRoute(ctx, routes[0].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, corestore.FleetEntry{
			Truck:      tr,
			Driver:     drv,
			Route:      routes[0],
			Deliveries: deliveries,
		})
	}
	return out, nil
}

func (s queries) ActiveOpportunityForPair(ctx context.Context, routeA, routeB string, now time.Time) (*model.Opportunity, error) {
	opps, err := listRecords[model.Opportunity](ctx, s.q,
		`SELECT record FROM opportunities
		 WHERE ((route1_id = ? AND route2_id = ?) OR (route1_id = ? AND route2_id = ?))
		 AND status IN (?, ?, ?, ?) AND expires_at > ? LIMIT 1`,
		routeA, routeB, routeB, routeA,
		string(model.OpportunityPending), string(model.OpportunityAcceptedByRoute1),
		string(model.OpportunityAcceptedByRoute2), string(model.OpportunityBothAccepted),
		now.Unix())
	if err != nil {
		return nil, err
	}
	if len(opps) == 0 {
		return nil, nil
	}
	return &opps[0], nil
}

func (s queries) ListActiveOpportunities(ctx context.Context, now time.Time) ([]model.Opportunity, error) {
	return listRecords[model.Opportunity](ctx, s.q,
		`SELECT record FROM opportunities
		 WHERE status IN (?, ?, ?, ?) AND expires_at > ? ORDER BY proposed_at DESC`,
		string(model.OpportunityPending), string(model.OpportunityAcceptedByRoute1),
		string(model.OpportunityAcceptedByRoute2), string(model.OpportunityBothAccepted),
		now.Unix())
}

// sqlTx implements corestore.Tx on top of a SQL transaction.
type sqlTx struct {
	tx *sql.Tx
	queries
}

func (t *sqlTx) CreateRoute(ctx context.Context, r model.Route) error {
	return upsert(ctx, t.tx, `INSERT INTO routes (id, truck_id, status, record) VALUES (?, ?, ?, ?)`,
		r, r.ID, r.TruckID, string(r.Status))
}

func (t *sqlTx) CreateOpportunity(ctx context.Context, o model.Opportunity) error {
	return upsert(ctx, t.tx,
		`INSERT INTO opportunities (id, route1_id, route2_id, status, proposed_at, expires_at, record) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o, o.ID, o.Route1ID, o.Route2ID, string(o.Status), o.ProposedAt.Unix(), o.ExpiresAt.Unix())
}

func (t *sqlTx) CreateTransfer(ctx context.Context, tr model.Transfer) error {
	return upsert(ctx, t.tx, `INSERT INTO transfers (id, status, record) VALUES (?, ?, ?)`,
		tr, tr.ID, string(tr.Status))
}

func (t *sqlTx) UpdateOpportunity(ctx context.Context, o model.Opportunity, expect model.OpportunityStatus) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE opportunities SET status = ?, expires_at = ?, record = ? WHERE id = ? AND status = ?`,
		string(o.Status), o.ExpiresAt.Unix(), string(b), o.ID, string(expect))
	if err != nil {
		return err
	}
	return casOutcome(ctx, t.tx, res, "opportunities", o.ID)
}

func (t *sqlTx) UpdateTransfer(ctx context.Context, tr model.Transfer, expect ...model.TransferStatus) error {
	b, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	query := `UPDATE transfers SET status = ?, record = ? WHERE id = ? AND status IN (`
	args := []any{string(tr.Status), string(b), tr.ID}
	for i, s := range expect {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, string(s))
	}
	query += `)`
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return casOutcome(ctx, t.tx, res, "transfers", tr.ID)
}

// casOutcome distinguishes a missing row from a failed status precondition.
func casOutcome(ctx context.Context, tx *sql.Tx, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return corestore.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%s %s status mismatch: %w", table, id, corestore.ErrConflict)
}

func (t *sqlTx) AssignDeliveries(ctx context.Context, ids []string, routeID, truckID, driverID string, status model.DeliveryStatus) error {
	for _, id := range ids {
		d, err := getRecord[model.Delivery](ctx, t.tx, "deliveries", id)
		if err != nil {
			return fmt.Errorf("delivery %s: %w", id, err)
		}
		d.RouteID = routeID
		d.TruckID = truckID
		d.DriverID = driverID
		d.Status = status
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE deliveries SET route_id = ?, status = ?, record = ? WHERE id = ?`,
			routeID, string(status), string(b), id); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) AdjustTruckLoad(ctx context.Context, id string, dWeightKg, dVolumeL float64) error {
	tr, err := getRecord[model.Truck](ctx, t.tx, "trucks", id)
	if err != nil {
		return fmt.Errorf("truck %s: %w", id, err)
	}
	tr.CurrentWeight += dWeightKg
	tr.CurrentVolume += dVolumeL
	if err := tr.Validate(); err != nil {
		return err
	}
	return t.writeTruck(ctx, tr)
}

func (t *sqlTx) SetTruckAvailability(ctx context.Context, id string, available bool) error {
	tr, err := getRecord[model.Truck](ctx, t.tx, "trucks", id)
	if err != nil {
		return fmt.Errorf("truck %s: %w", id, err)
	}
	tr.Available = available
	return t.writeTruck(ctx, tr)
}

func (t *sqlTx) writeTruck(ctx context.Context, tr model.Truck) error {
	b, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE trucks SET available = ?, record = ? WHERE id = ?`,
		boolInt(tr.Available), string(b), tr.ID)
	return err
}

func (t *sqlTx) AddDriverDistance(ctx context.Context, id string, km float64) error {
	d, err := getRecord[model.Driver](ctx, t.tx, "drivers", id)
	if err != nil {
		return fmt.Errorf("driver %s: %w", id, err)
	}
	d.TotalDistanceKm += km
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE drivers SET record = ? WHERE id = ?`, string(b), d.ID)
	return err
}

func (t *sqlTx) TransferDocuments(ctx context.Context, fromDriver, toDriver, vehicleNo string) (int, error) {
	docs, err := listRecords[model.EWayBill](ctx, t.tx,
		`SELECT record FROM documents WHERE driver_id = ? AND status = ? ORDER BY rowid`,
		fromDriver, string(model.DocumentActive))
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		doc.DriverID = toDriver
		doc.VehicleNo = vehicleNo
		doc.Status = model.DocumentTransferred
		b, err := json.Marshal(doc)
		if err != nil {
			return 0, err
		}
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE documents SET driver_id = ?, status = ?, record = ? WHERE id = ?`,
			toDriver, string(model.DocumentTransferred), string(b), doc.ID); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}

func (t *sqlTx) ExpireOpportunities(ctx context.Context, now time.Time) (int, error) {
	opps, err := listRecords[model.Opportunity](ctx, t.tx,
		`SELECT record FROM opportunities WHERE status IN (?, ?, ?, ?) AND expires_at <= ?`,
		string(model.OpportunityPending), string(model.OpportunityAcceptedByRoute1),
		string(model.OpportunityAcceptedByRoute2), string(model.OpportunityBothAccepted),
		now.Unix())
	if err != nil {
		return 0, err
	}
	for _, o := range opps {
		o.Status = model.OpportunityExpired
		b, err := json.Marshal(o)
		if err != nil {
			return 0, err
		}
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE opportunities SET status = ?, record = ? WHERE id = ?`,
			string(model.OpportunityExpired), string(b), o.ID); err != nil {
			return 0, err
		}
	}
	return len(opps), nil
}
