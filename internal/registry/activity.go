package registry

import "time"

// RegisterComponent upserts a component instance row.
func (d *DB) RegisterComponent(id, name string) error {
	_, err := d.db.Exec(`
		INSERT INTO components (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, id, name)
	return err
}

// PortRegistration mirrors one register_port call (§3 Lifecycle, §6
// register_port).
type PortRegistration struct {
	ComponentID string
	PortIndex   int
	Direction   string
	Domain      string
	IsConfig    bool
}

// RecordPortRegistration persists one port registration.
func (d *DB) RecordPortRegistration(r PortRegistration) error {
	isConfig := 0
	if r.IsConfig {
		isConfig = 1
	}
	_, err := d.db.Exec(`
		INSERT INTO port_registrations (component_id, port_index, direction, domain, is_config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(component_id, port_index) DO UPDATE SET
			direction = excluded.direction,
			domain = excluded.domain,
			is_config = excluded.is_config
	`, r.ComponentID, r.PortIndex, r.Direction, r.Domain, isConfig)
	return err
}

// ListPortRegistrations returns every port registered to componentID.
func (d *DB) ListPortRegistrations(componentID string) ([]PortRegistration, error) {
	rows, err := d.db.Query(`
		SELECT component_id, port_index, direction, domain, is_config
		FROM port_registrations WHERE component_id = ? ORDER BY port_index
	`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PortRegistration
	for rows.Next() {
		var r PortRegistration
		var isConfig int
		if err := rows.Scan(&r.ComponentID, &r.PortIndex, &r.Direction, &r.Domain, &isConfig); err != nil {
			return nil, err
		}
		r.IsConfig = isConfig != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// CommandRecord is one persisted CommandComplete event (§6 Events emitted).
type CommandRecord struct {
	ComponentID string
	Command     string
	Port        int
	Error       string
	CompletedAt time.Time
}

// RecordCommandComplete appends one row to the command audit trail.
func (d *DB) RecordCommandComplete(r CommandRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO command_log (component_id, command, port, error)
		VALUES (?, ?, ?, ?)
	`, r.ComponentID, r.Command, r.Port, r.Error)
	return err
}

// ListCommandLog returns the most recent limit command-completion rows for
// componentID, newest first. limit <= 0 means unlimited.
func (d *DB) ListCommandLog(componentID string, limit int) ([]CommandRecord, error) {
	query := `
		SELECT component_id, command, port, error, completed_at
		FROM command_log WHERE component_id = ? ORDER BY id DESC
	`
	args := []any{componentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var r CommandRecord
		var completedStr string
		if err := rows.Scan(&r.ComponentID, &r.Command, &r.Port, &r.Error, &completedStr); err != nil {
			return nil, err
		}
		r.CompletedAt, _ = time.Parse("2006-01-02 15:04:05", completedStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkRecord is one persisted mark-consumption event (§4.5).
type MarkRecord struct {
	ComponentID     string
	Port            int
	TargetComponent string
	Error           string
}

// RecordMarkConsumed appends one row to the mark audit trail.
func (d *DB) RecordMarkConsumed(r MarkRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO mark_log (component_id, port, target_component, error)
		VALUES (?, ?, ?, ?)
	`, r.ComponentID, r.Port, r.TargetComponent, r.Error)
	return err
}
