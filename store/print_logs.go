package store

import (
	"database/sql"
	"errors"
	"time"
)

// Print event types recorded in the local journal.
const (
	PrintEventPrinted     = "printed"
	PrintEventPrintFailed = "print_failed"
	PrintEventMarkFailed  = "mark_failed"
	PrintEventReprint     = "reprint"
	PrintEventTestPrint   = "test_print"
)

// PrintLog is one entry of the local print journal. The backend keeps
// its own audit trail; this copy survives connectivity loss and feeds
// the local status page.
type PrintLog struct {
	ID            int64     `json:"id"`
	OrderID       string    `json:"order_id"`
	DisplayNumber string    `json:"display_number"`
	EventType     string    `json:"event_type"`
	Status        string    `json:"status"`
	Detail        string    `json:"detail"`
	Total         float64   `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
}

func (db *DB) InsertPrintLog(orderID, displayNumber, eventType, status, detail string, total float64) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO print_logs (order_id, display_number, event_type, status, detail, total) VALUES (?, ?, ?, ?, ?, ?)`,
		orderID, displayNumber, eventType, status, detail, total)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) ListRecentPrintLogs(limit int) ([]PrintLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT id, order_id, display_number, event_type, status, detail, total, created_at
		 FROM print_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []PrintLog
	for rows.Next() {
		var l PrintLog
		var createdAt string
		if err := rows.Scan(&l.ID, &l.OrderID, &l.DisplayNumber, &l.EventType, &l.Status, &l.Detail, &l.Total, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = scanTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CountPrinted returns how many orders this agent has printed, for the
// heartbeat payload and status page.
func (db *DB) CountPrinted() (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM print_logs WHERE event_type = ? AND status = 'ok'`, PrintEventPrinted).Scan(&n)
	return n, err
}

// LastPrintedAt returns the time of the most recent successful print,
// or nil when nothing has been printed yet.
func (db *DB) LastPrintedAt() (*time.Time, error) {
	var createdAt string
	err := db.QueryRow(
		`SELECT created_at FROM print_logs WHERE event_type = ? AND status = 'ok' ORDER BY id DESC LIMIT 1`,
		PrintEventPrinted).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := scanTime(createdAt)
	return &t, nil
}
