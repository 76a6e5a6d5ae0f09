// Package sqlstore implements queue.Engine on top of a relational SQLite
// database, grounded on burrow.backend.sqlite.Backend from the original
// Python implementation: three tables (accounts, queues, messages) keyed by
// SQLite rowid, with a message's rowid standing in for its insertion-order
// position so a "marker" resumes a scan with "WHERE rowid > ?", and bulk
// deletes batched at MaximumParameters placeholders per statement to stay
// under SQLite's bound-parameter ceiling.
//
// Unlike internal/queue/memstore, whose Seq results stay open over a live
// in-memory cursor for the duration of a streamed HTTP response, sqlstore
// materializes a bulk read/delete/update into a slice before returning its
// iter.Seq. The database connection pool is capped at one open connection
// (single-writer SQLite), so a *sql.Rows left open across a slow client
// write would otherwise stall every other query against the same database;
// buffering the matched rows trades a small, LIMIT-bounded amount of memory
// for never holding the sole connection open past its own query.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/emonty/burrow/internal/queue"
)

// MaximumParameters bounds how many "?" placeholders a single batched
// statement uses, matching burrow.backend.sqlite.MAXIMUM_PARAMETERS; SQLite
// rejects statements with more than 999 bound parameters.
const MaximumParameters = 990

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS queues (
	account TEXT NOT NULL,
	queue   TEXT NOT NULL,
	UNIQUE(account, queue)
);
CREATE INDEX IF NOT EXISTS idx_queues_account ON queues(account);
CREATE TABLE IF NOT EXISTS messages (
	queue_id INTEGER NOT NULL,
	message  TEXT NOT NULL,
	ttl      INTEGER NOT NULL DEFAULT 0,
	hide     INTEGER NOT NULL DEFAULT 0,
	body     BLOB,
	UNIQUE(queue_id, message)
);
CREATE INDEX IF NOT EXISTS idx_messages_queue ON messages(queue_id);
`

// Engine is the relational queue.Engine implementation.
type Engine struct {
	db  *sql.DB
	now func() int64
}

// Open applies the schema (idempotently) to db and returns an Engine backed
// by it. The caller retains ownership of db and must Close the Engine (not
// db directly) to release it.
func Open(ctx context.Context, db *sql.DB) (*Engine, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Engine{db: db, now: func() int64 { return time.Now().Unix() }}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

type Detail = queue.Detail

func resolve(d Detail, def Detail) Detail {
	if d == queue.DetailDefault {
		return def
	}
	return d
}

func renderMessage(m queue.Message, detail Detail, now int64) (queue.MessageView, bool) {
	switch detail {
	case queue.DetailNone:
		return queue.MessageView{}, false
	case queue.DetailID:
		return queue.MessageView{ID: m.ID}, true
	case queue.DetailBody:
		return queue.MessageView{ID: m.ID, Body: m.Body}, true
	case queue.DetailAttributes:
		return queue.MessageView{ID: m.ID, TTL: queue.Relativize(m.TTL, now), Hide: queue.Relativize(m.Hide, now)}, true
	case queue.DetailAll:
		return queue.MessageView{ID: m.ID, TTL: queue.Relativize(m.TTL, now), Hide: queue.Relativize(m.Hide, now), Body: m.Body}, true
	default:
		return queue.MessageView{}, false
	}
}

func renderAccountOrQueue(id string, detail Detail) (string, bool) {
	switch detail {
	case queue.DetailNone:
		return "", false
	case queue.DetailID, queue.DetailAll:
		return id, true
	default:
		return "", false
	}
}

func (e *Engine) ensureAccount(ctx context.Context, tx *sql.Tx, account string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts(account) VALUES (?) ON CONFLICT(account) DO NOTHING`, account)
	return err
}

func (e *Engine) ensureQueue(ctx context.Context, tx *sql.Tx, account, q string) (int64, error) {
	if err := e.ensureAccount(ctx, tx, account); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO queues(account, queue) VALUES (?, ?) ON CONFLICT(account, queue) DO NOTHING`, account, q); err != nil {
		return 0, err
	}
	return e.lookupQueueIDTx(ctx, tx, account, q)
}

func (e *Engine) lookupQueueIDTx(ctx context.Context, tx *sql.Tx, account, q string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT rowid FROM queues WHERE account = ? AND queue = ?`, account, q).Scan(&id)
	return id, err
}

func (e *Engine) lookupQueueID(ctx context.Context, account, q string) (int64, bool, error) {
	var id int64
	err := e.db.QueryRowContext(ctx, `SELECT rowid FROM queues WHERE account = ? AND queue = ?`, account, q).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (e *Engine) checkEmptyQueue(ctx context.Context, tx *sql.Tx, account string, queueID int64) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE queue_id = ?`, queueID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queues WHERE rowid = ?`, queueID); err != nil {
		return err
	}
	return e.checkEmptyAccount(ctx, tx, account)
}

func (e *Engine) checkEmptyAccount(ctx context.Context, tx *sql.Tx, account string) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queues WHERE account = ?`, account).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE account = ?`, account)
	return err
}

// CreateMessage implements queue.Engine.
func (e *Engine) CreateMessage(ctx context.Context, account, q, id string, body []byte, attrs queue.Attributes) (created, notify bool, err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback()

	queueID, err := e.ensureQueue(ctx, tx, account, q)
	if err != nil {
		return false, false, err
	}

	now := e.now()
	ttl := queue.Absolutize(attrs.TTL, now)
	hide := queue.Absolutize(attrs.Hide, now)

	var existingID int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM messages WHERE queue_id = ? AND message = ?`, queueID, id).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO messages(queue_id, message, ttl, hide, body) VALUES (?, ?, ?, ?, ?)`, queueID, id, ttl, hide, body); err != nil {
			return false, false, err
		}
		created = true
	case err != nil:
		return false, false, err
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET ttl = ?, hide = ?, body = ? WHERE rowid = ?`, ttl, hide, body, existingID); err != nil {
			return false, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, false, err
	}
	return created, hide == 0, nil
}

// GetMessage implements queue.Engine.
func (e *Engine) GetMessage(ctx context.Context, account, q, id string, detail Detail) (queue.MessageView, error) {
	queueID, ok, err := e.lookupQueueID(ctx, account, q)
	if err != nil {
		return queue.MessageView{}, err
	}
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("queue not found")
	}

	var msg queue.Message
	msg.ID = id
	err = e.db.QueryRowContext(ctx, `SELECT ttl, hide, body FROM messages WHERE queue_id = ? AND message = ?`, queueID, id).Scan(&msg.TTL, &msg.Hide, &msg.Body)
	if err == sql.ErrNoRows {
		return queue.MessageView{}, queue.NewNotFound("message not found")
	}
	if err != nil {
		return queue.MessageView{}, err
	}
	view, _ := renderMessage(msg, resolve(detail, queue.DetailAll), e.now())
	return view, nil
}

// DeleteMessage implements queue.Engine.
func (e *Engine) DeleteMessage(ctx context.Context, account, q, id string, detail Detail) (queue.MessageView, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return queue.MessageView{}, err
	}
	defer tx.Rollback()

	queueID, err := e.lookupQueueIDTx(ctx, tx, account, q)
	if err == sql.ErrNoRows {
		return queue.MessageView{}, queue.NewNotFound("queue not found")
	}
	if err != nil {
		return queue.MessageView{}, err
	}

	var msg queue.Message
	msg.ID = id
	var rowID int64
	err = tx.QueryRowContext(ctx, `SELECT rowid, ttl, hide, body FROM messages WHERE queue_id = ? AND message = ?`, queueID, id).Scan(&rowID, &msg.TTL, &msg.Hide, &msg.Body)
	if err == sql.ErrNoRows {
		return queue.MessageView{}, queue.NewNotFound("message not found")
	}
	if err != nil {
		return queue.MessageView{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE rowid = ?`, rowID); err != nil {
		return queue.MessageView{}, err
	}
	if err := e.checkEmptyQueue(ctx, tx, account, queueID); err != nil {
		return queue.MessageView{}, err
	}
	if err := tx.Commit(); err != nil {
		return queue.MessageView{}, err
	}

	view, _ := renderMessage(msg, resolve(detail, queue.DetailNone), e.now())
	return view, nil
}

// UpdateMessage implements queue.Engine.
func (e *Engine) UpdateMessage(ctx context.Context, account, q, id string, attrs queue.Attributes, detail Detail) (queue.MessageView, bool, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return queue.MessageView{}, false, err
	}
	defer tx.Rollback()

	queueID, err := e.lookupQueueIDTx(ctx, tx, account, q)
	if err == sql.ErrNoRows {
		return queue.MessageView{}, false, queue.NewNotFound("queue not found")
	}
	if err != nil {
		return queue.MessageView{}, false, err
	}

	var msg queue.Message
	msg.ID = id
	var rowID int64
	err = tx.QueryRowContext(ctx, `SELECT rowid, ttl, hide, body FROM messages WHERE queue_id = ? AND message = ?`, queueID, id).Scan(&rowID, &msg.TTL, &msg.Hide, &msg.Body)
	if err == sql.ErrNoRows {
		return queue.MessageView{}, false, queue.NewNotFound("message not found")
	}
	if err != nil {
		return queue.MessageView{}, false, err
	}

	now := e.now()
	notify := false
	if attrs.TTL != nil {
		msg.TTL = queue.Absolutize(attrs.TTL, now)
	}
	if attrs.Hide != nil {
		msg.Hide = queue.Absolutize(attrs.Hide, now)
		notify = msg.Hide == 0
	}
	if _, err := tx.ExecContext(ctx, `UPDATE messages SET ttl = ?, hide = ? WHERE rowid = ?`, msg.TTL, msg.Hide, rowID); err != nil {
		return queue.MessageView{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return queue.MessageView{}, false, err
	}

	view, _ := renderMessage(msg, resolve(detail, queue.DetailNone), now)
	return view, notify, nil
}

type messageRow struct {
	rowID int64
	msg   queue.Message
}

// collectMessages returns the messages in queueID matching filter, in
// rowid (insertion) order, bounded by filter.Limit when set. Hidden
// messages are excluded in the query itself (unless filter.MatchHidden),
// so the limit counts only messages that match.
func (e *Engine) collectMessages(ctx context.Context, tx *sql.Tx, queueID int64, filter queue.Filter, now int64) ([]messageRow, error) {
	markerRowID := int64(0)
	if filter.HasMarker {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM messages WHERE queue_id = ? AND message = ?`, queueID, filter.Marker).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			markerRowID = id
		}
	}

	query := `SELECT rowid, message, ttl, hide, body FROM messages WHERE queue_id = ? AND rowid > ?`
	args := []any{queueID, markerRowID}
	if !filter.MatchHidden {
		query += ` AND (hide = 0 OR hide <= ?)`
		args = append(args, now)
	}
	query += ` ORDER BY rowid`
	if filter.HasLimit {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messageRow
	for rows.Next() {
		var r messageRow
		if err := rows.Scan(&r.rowID, &r.msg.ID, &r.msg.TTL, &r.msg.Hide, &r.msg.Body); err != nil {
			return nil, err
		}
		if !filter.MatchHidden && !r.msg.Visible(now) {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func messageViewSeq(rows []messageRow, detail Detail, now int64) iter.Seq[queue.MessageView] {
	return func(yield func(queue.MessageView) bool) {
		for _, r := range rows {
			view, ok := renderMessage(r.msg, detail, now)
			if !ok {
				continue
			}
			if !yield(view) {
				return
			}
		}
	}
}

// GetMessages implements queue.Engine.
func (e *Engine) GetMessages(ctx context.Context, account, q string, filter queue.Filter) (iter.Seq[queue.MessageView], error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	queueID, err := e.lookupQueueIDTx(ctx, tx, account, q)
	if err == sql.ErrNoRows {
		return nil, queue.NewNotFound("queue not found")
	}
	if err != nil {
		return nil, err
	}

	now := e.now()
	rows, err := e.collectMessages(ctx, tx, queueID, filter, now)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("message not found")
	}
	detail := resolve(filter.Detail, queue.DetailAll)
	return messageViewSeq(rows, detail, now), nil
}

// DeleteMessages implements queue.Engine.
func (e *Engine) DeleteMessages(ctx context.Context, account, q string, filter queue.Filter) (iter.Seq[queue.MessageView], error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	queueID, err := e.lookupQueueIDTx(ctx, tx, account, q)
	if err == sql.ErrNoRows {
		return nil, queue.NewNotFound("queue not found")
	}
	if err != nil {
		return nil, err
	}

	now := e.now()
	rows, err := e.collectMessages(ctx, tx, queueID, filter, now)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("message not found")
	}

	if err := deleteRowsBatched(ctx, tx, "messages", rowIDs(rows)); err != nil {
		return nil, err
	}
	if err := e.checkEmptyQueue(ctx, tx, account, queueID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return messageViewSeq(rows, detail, now), nil
}

// UpdateMessages implements queue.Engine.
func (e *Engine) UpdateMessages(ctx context.Context, account, q string, attrs queue.Attributes, filter queue.Filter) (iter.Seq[queue.MessageView], bool, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	queueID, err := e.lookupQueueIDTx(ctx, tx, account, q)
	if err == sql.ErrNoRows {
		return nil, false, queue.NewNotFound("queue not found")
	}
	if err != nil {
		return nil, false, err
	}

	now := e.now()
	rows, err := e.collectMessages(ctx, tx, queueID, filter, now)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, queue.NewNotFound("message not found")
	}

	notify := false
	for i := range rows {
		if attrs.TTL != nil {
			rows[i].msg.TTL = queue.Absolutize(attrs.TTL, now)
		}
		if attrs.Hide != nil {
			rows[i].msg.Hide = queue.Absolutize(attrs.Hide, now)
			if rows[i].msg.Hide == 0 {
				notify = true
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET ttl = ?, hide = ? WHERE rowid = ?`, rows[i].msg.TTL, rows[i].msg.Hide, rows[i].rowID); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return messageViewSeq(rows, detail, now), notify, nil
}

type idRow struct {
	rowID int64
	id    string
}

func collectQueues(ctx context.Context, tx *sql.Tx, account string, filter queue.Filter) ([]idRow, error) {
	markerRowID := int64(0)
	if filter.HasMarker {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM queues WHERE account = ? AND queue = ?`, account, filter.Marker).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			markerRowID = id
		}
	}
	query := `SELECT rowid, queue FROM queues WHERE account = ? AND rowid > ? ORDER BY rowid`
	args := []any{account, markerRowID}
	if filter.HasLimit {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []idRow
	for rows.Next() {
		var r idRow
		if err := rows.Scan(&r.rowID, &r.id); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func idViewSeq[V any](rows []idRow, detail Detail, build func(string) V) iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, r := range rows {
			id, ok := renderAccountOrQueue(r.id, detail)
			if !ok {
				continue
			}
			if !yield(build(id)) {
				return
			}
		}
	}
}

// GetQueues implements queue.Engine.
func (e *Engine) GetQueues(ctx context.Context, account string, filter queue.Filter) (iter.Seq[queue.QueueEntry], error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE account = ?`, account).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, queue.NewNotFound("account not found")
	}

	rows, err := collectQueues(ctx, tx, account, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("queue not found")
	}
	detail := resolve(filter.Detail, queue.DetailID)
	return idViewSeq(rows, detail, func(id string) queue.QueueEntry { return queue.QueueEntry{ID: id} }), nil
}

// DeleteQueues implements queue.Engine.
func (e *Engine) DeleteQueues(ctx context.Context, account string, filter queue.Filter) (iter.Seq[queue.QueueEntry], error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE account = ?`, account).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, queue.NewNotFound("account not found")
	}

	rows, err := collectQueues(ctx, tx, account, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("queue not found")
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.rowID
	}
	if err := deleteRowsBatched(ctx, tx, "messages", nil, "queue_id", ids); err != nil {
		return nil, err
	}
	if err := deleteRowsBatched(ctx, tx, "queues", ids); err != nil {
		return nil, err
	}
	if err := e.checkEmptyAccount(ctx, tx, account); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return idViewSeq(rows, detail, func(id string) queue.QueueEntry { return queue.QueueEntry{ID: id} }), nil
}

func collectAccounts(ctx context.Context, tx *sql.Tx, filter queue.Filter) ([]idRow, error) {
	markerRowID := int64(0)
	if filter.HasMarker {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT rowid FROM accounts WHERE account = ?`, filter.Marker).Scan(&id)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			markerRowID = id
		}
	}
	query := `SELECT rowid, account FROM accounts WHERE rowid > ? ORDER BY rowid`
	args := []any{markerRowID}
	if filter.HasLimit {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []idRow
	for rows.Next() {
		var r idRow
		if err := rows.Scan(&r.rowID, &r.id); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetAccounts implements queue.Engine.
func (e *Engine) GetAccounts(ctx context.Context, filter queue.Filter) (iter.Seq[queue.AccountEntry], error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := collectAccounts(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("account not found")
	}
	detail := resolve(filter.Detail, queue.DetailID)
	return idViewSeq(rows, detail, func(id string) queue.AccountEntry { return queue.AccountEntry{ID: id} }), nil
}

// DeleteAccounts implements queue.Engine.
func (e *Engine) DeleteAccounts(ctx context.Context, filter queue.Filter) (iter.Seq[queue.AccountEntry], error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := collectAccounts(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, queue.NewNotFound("account not found")
	}

	for _, r := range rows {
		var queueIDs []int64
		qrows, err := tx.QueryContext(ctx, `SELECT rowid FROM queues WHERE account = ?`, r.id)
		if err != nil {
			return nil, err
		}
		for qrows.Next() {
			var id int64
			if err := qrows.Scan(&id); err != nil {
				qrows.Close()
				return nil, err
			}
			queueIDs = append(queueIDs, id)
		}
		qrows.Close()

		if err := deleteRowsBatched(ctx, tx, "messages", nil, "queue_id", queueIDs); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queues WHERE account = ?`, r.id); err != nil {
			return nil, err
		}
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.rowID
	}
	if err := deleteRowsBatched(ctx, tx, "accounts", ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return idViewSeq(rows, detail, func(id string) queue.AccountEntry { return queue.AccountEntry{ID: id} }), nil
}

// deleteRowsBatched deletes table rows whose rowid is in ids, MaximumParameters
// at a time. When column/altIDs are supplied (DeleteQueues' message cleanup),
// it deletes by that column instead of rowid.
func deleteRowsBatched(ctx context.Context, tx *sql.Tx, table string, ids []int64, columnAndAltIDs ...any) error {
	column := "rowid"
	values := ids
	if len(columnAndAltIDs) == 2 {
		column = columnAndAltIDs[0].(string)
		values = columnAndAltIDs[1].([]int64)
	}
	for len(values) > 0 {
		n := MaximumParameters
		if n > len(values) {
			n = len(values)
		}
		batch := values[:n]
		values = values[n:]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, column, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func rowIDs(rows []messageRow) []int64 {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.rowID
	}
	return ids
}

// Clean implements queue.Engine: removes every ttl-expired message and
// unhides every hide-expired message across every account/queue in one
// transaction, using set-based statements that bind only the current time
// (no per-row parameter lists, so no MaximumParameters batching applies).
func (e *Engine) Clean(ctx context.Context) ([]queue.NotifyTarget, queue.CleanStats, error) {
	var stats queue.CleanStats

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stats, err
	}
	defer tx.Rollback()

	now := e.now()
	expiredResult, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE ttl > 0 AND ttl <= ?`, now)
	if err != nil {
		return nil, stats, err
	}
	if n, err := expiredResult.RowsAffected(); err == nil {
		stats.Expired = int(n)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT q.account, q.queue
		FROM messages m
		JOIN queues q ON q.rowid = m.queue_id
		WHERE m.hide > 0 AND m.hide <= ?`, now)
	if err != nil {
		return nil, stats, err
	}
	var notify []queue.NotifyTarget
	for rows.Next() {
		var t queue.NotifyTarget
		if err := rows.Scan(&t.Account, &t.Queue); err != nil {
			rows.Close()
			return nil, stats, err
		}
		notify = append(notify, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, stats, err
	}
	rows.Close()

	unhiddenResult, err := tx.ExecContext(ctx, `UPDATE messages SET hide = 0 WHERE hide > 0 AND hide <= ?`, now)
	if err != nil {
		return nil, stats, err
	}
	if n, err := unhiddenResult.RowsAffected(); err == nil {
		stats.Unhidden = int(n)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM queues WHERE rowid IN (
			SELECT q.rowid FROM queues q
			LEFT JOIN messages m ON m.queue_id = q.rowid
			WHERE m.rowid IS NULL
		)`); err != nil {
		return nil, stats, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM accounts WHERE account IN (
			SELECT a.account FROM accounts a
			LEFT JOIN queues q ON q.account = a.account
			WHERE q.rowid IS NULL
		)`); err != nil {
		return nil, stats, err
	}

	if err := tx.Commit(); err != nil {
		return nil, stats, err
	}
	return notify, stats, nil
}
