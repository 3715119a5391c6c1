package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/cun0/vessel-notify/internal/domain"
)

var ErrNotFound = errors.New("notification not found")

// NotificationRepo is the document store for ingested notifications.
// Every call is bounded by callTimeout so a stuck database cannot pin a goroutine.
type NotificationRepo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

func NewNotificationRepo(pool *pgxpool.Pool, callTimeout time.Duration) *NotificationRepo {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &NotificationRepo{pool: pool, callTimeout: callTimeout}
}

func (r *NotificationRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.callTimeout)
}

const notificationColumns = `id, kind, received_at, user_id, auto_screen, payload, screening_result`

// Insert stores a new notification and returns the identifier assigned to it.
func (r *NotificationRepo) Insert(ctx context.Context, n domain.Notification) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
	INSERT INTO notifications (id, kind, received_at, user_id, auto_screen, payload)
	VALUES ($1, $2, $3, $4, $5, $6::json)
	RETURNING id;
`
	var id string
	err := r.pool.QueryRow(ctx, q,
		ulid.Make().String(),
		string(n.Kind),
		n.ReceivedAt,
		n.UserID,
		n.AutoScreen,
		payloadText(n.Payload),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// UpdateScreening attaches a screening result. It only matches records that have none yet,
// so a result is written at most once; the matched count is returned.
func (r *NotificationRepo) UpdateScreening(ctx context.Context, id string, res domain.ScreeningResult) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	doc, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("encode screening result: %w", err)
	}

	const q = `
	UPDATE notifications
	SET screening_result = $2::jsonb
	WHERE id = $1 AND screening_result IS NULL;
`
	tag, err := r.pool.Exec(ctx, q, id, string(doc))
	if err != nil {
		return 0, fmt.Errorf("update screening result: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) FindByID(ctx context.Context, id string) (domain.Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1;`

	n, err := scanNotification(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Notification{}, ErrNotFound
	}
	if err != nil {
		return domain.Notification{}, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

type ListFilter struct {
	UserID string
	Kind   domain.Kind // optional
	From   time.Time
	To     time.Time
	Limit  int
}

// ListByUser returns the user's notifications received in [From, To), newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, f ListFilter) ([]domain.Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `
SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = $1
  AND received_at >= $2
  AND received_at <  $3
  AND ($4 = '' OR kind = $4)
ORDER BY received_at DESC, id DESC
LIMIT $5;
`
	rows, err := r.pool.Query(ctx, q, f.UserID, f.From, f.To, string(f.Kind), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type KindCount struct {
	Kind     domain.Kind
	Total    int64
	Screened int64
}

// Counts aggregates the user's notifications in [from, to) per kind.
func (r *NotificationRepo) Counts(ctx context.Context, userID string, from, to time.Time) ([]KindCount, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
SELECT
  kind,
  COUNT(*)::bigint AS total,
  COUNT(screening_result)::bigint AS screened
FROM notifications
WHERE user_id = $1
  AND received_at >= $2
  AND received_at <  $3
GROUP BY kind
ORDER BY kind;
`
	rows, err := r.pool.Query(ctx, q, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var (
			row  KindCount
			kind string
		)
		if err := rows.Scan(&kind, &row.Total, &row.Screened); err != nil {
			return nil, err
		}
		row.Kind = domain.Kind(kind)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var (
		n         domain.Notification
		kind      string
		payload   []byte
		screening []byte
	)
	if err := row.Scan(&n.ID, &kind, &n.ReceivedAt, &n.UserID, &n.AutoScreen, &payload, &screening); err != nil {
		return domain.Notification{}, err
	}
	n.Kind = domain.Kind(kind)
	n.ReceivedAt = n.ReceivedAt.UTC()
	n.Payload = json.RawMessage(payload)

	if len(screening) > 0 {
		var res domain.ScreeningResult
		if err := json.Unmarshal(screening, &res); err != nil {
			return domain.Notification{}, fmt.Errorf("decode screening result: %w", err)
		}
		n.ScreeningResult = &res
	}
	return n, nil
}

// payloadText is stored in a json column, which keeps the document exactly as received.
func payloadText(raw []byte) string {
	if len(raw) == 0 {
		return `{}`
	}
	return string(raw)
}
