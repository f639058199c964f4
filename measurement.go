package fluxstore

import "time"

// Measurement is a named view onto a Database: every operation is the
// coordinator's own operation with `measurement == name` silently
// conjoined onto the query. It holds no state of its own — two
// Measurement values for the same name and Database are interchangeable.
type Measurement struct {
	db   *Database
	name string
}

// Measurement returns a view scoped to the named measurement.
func (db *Database) Measurement(name string) *Measurement {
	return &Measurement{db: db, name: name}
}

// Name returns the measurement's name.
func (m *Measurement) Name() string { return m.name }

func (m *Measurement) scope(q Query) Query {
	if q == nil {
		return Measurement().Eq(m.name)
	}
	return And(Measurement().Eq(m.name), q)
}

// Insert appends a Point, overriding its measurement to m's name.
func (m *Measurement) Insert(t time.Time, tags TagSet, fields FieldSet) error {
	p, err := NewPoint(t, m.name, tags, fields)
	if err != nil {
		return err
	}
	return m.db.Insert(p)
}

// InsertMultiple appends points, overriding each Point's measurement to
// m's name.
func (m *Measurement) InsertMultiple(points []Point) error {
	scoped := make([]Point, len(points))
	for i, p := range points {
		np, err := NewPoint(p.Time(), m.name, p.Tags(), p.Fields())
		if err != nil {
			return err
		}
		scoped[i] = np
	}
	return m.db.InsertMultiple(scoped)
}

// Contains reports whether any Point in this measurement matches q.
func (m *Measurement) Contains(q Query) (bool, error) { return m.db.Contains(m.scope(q)) }

// Count returns the number of Points in this measurement matching q.
func (m *Measurement) Count(q Query) (int, error) { return m.db.Count(m.scope(q)) }

// Get returns the first Point in this measurement matching q.
func (m *Measurement) Get(q Query) (Point, bool, error) { return m.db.Get(m.scope(q)) }

// Search returns every Point in this measurement matching q.
func (m *Measurement) Search(q Query) ([]Point, error) { return m.db.Search(m.scope(q)) }

// All returns every Point in this measurement.
func (m *Measurement) All() ([]Point, error) { return m.db.Search(m.scope(nil)) }

// Select projects matched Points in this measurement onto paths.
func (m *Measurement) Select(paths []string, q Query) ([][]any, error) {
	return m.db.Select(paths, m.scope(q))
}

// Remove deletes every Point in this measurement matching q.
func (m *Measurement) Remove(q Query) (int, error) { return m.db.Remove(m.scope(q)) }

// RemoveAll deletes every Point in this measurement.
func (m *Measurement) RemoveAll() (int, error) { return m.db.DropMeasurement(m.name) }

// Update applies fn to every Point in this measurement matching q.
func (m *Measurement) Update(q Query, fn func(Point) (Point, error)) (int, error) {
	return m.db.Update(m.scope(q), fn)
}
