package postgres

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

func (r *historyRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, events []*model.HistoryEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO history_events (
			id, virtual_code_id, action_type, ref_type, ref_id,
			from_status, from_owner_type, from_owner_org_id, from_owner_phone,
			to_status, to_owner_type, to_owner_org_id, to_owner_phone,
			is_recall, recall_reason, created_at
		) VALUES (
			:id, :virtual_code_id, :action_type, :ref_type, :ref_id,
			:from_status, :from_owner_type, :from_owner_org_id, :from_owner_phone,
			:to_status, :to_owner_type, :to_owner_org_id, :to_owner_phone,
			:is_recall, :recall_reason, :created_at
		)
	`
	now := time.Now()
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}

	if _, err := tx.NamedExecContext(ctx, query, events); err != nil {
		return fmt.Errorf("failed to append history events: %w", err)
	}
	return nil
}

func (r *historyRepository) ListByCode(ctx context.Context, codeID uuid.UUID) ([]*model.CodeTrace, error) {
	query := `
		SELECT he.id, he.virtual_code_id, he.action_type, he.ref_type, he.ref_id,
			   he.from_status, he.from_owner_type, he.from_owner_org_id, he.from_owner_phone,
			   he.to_status, he.to_owner_type, he.to_owner_org_id, he.to_owner_phone,
			   he.is_recall, he.recall_reason, he.created_at,
			   vc.code, l.lot_number, p.model_name AS product_name,
			   o_from.name AS from_name, o_to.name AS to_name
		FROM history_events he
		JOIN virtual_codes vc ON vc.id = he.virtual_code_id
		JOIN lots l ON l.id = vc.lot_id
		JOIN products p ON p.id = l.product_id
		LEFT JOIN organizations o_from ON o_from.id = he.from_owner_org_id
		LEFT JOIN organizations o_to ON o_to.id = he.to_owner_org_id
		WHERE he.virtual_code_id = $1
		ORDER BY he.created_at ASC, he.id ASC
	`
	var trace []*model.CodeTrace
	if err := r.db.SelectContext(ctx, &trace, query, codeID); err != nil {
		return nil, fmt.Errorf("failed to trace code history: %w", err)
	}
	return trace, nil
}

// ListByRefTx returns the forward events of one operation, the stored
// source of truth for a recall's pre-event state.
func (r *historyRepository) ListByRefTx(ctx context.Context, tx *sqlx.Tx, refType model.RefType, refID uuid.UUID, action model.ActionType) ([]*model.HistoryEvent, error) {
	query := `
		SELECT id, virtual_code_id, action_type, ref_type, ref_id,
			   from_status, from_owner_type, from_owner_org_id, from_owner_phone,
			   to_status, to_owner_type, to_owner_org_id, to_owner_phone,
			   is_recall, recall_reason, created_at
		FROM history_events
		WHERE ref_type = $1 AND ref_id = $2 AND action_type = $3 AND is_recall = false
		ORDER BY created_at ASC, id ASC
	`
	var events []*model.HistoryEvent
	if err := tx.SelectContext(ctx, &events, query, refType, refID, action); err != nil {
		return nil, fmt.Errorf("failed to list history by ref: %w", err)
	}
	return events, nil
}

// summaryActions are the one-row-per-operation action types. RECEIVED rows
// mirror SHIPPED rows and would double every shipment in summaries.
var summaryActions = []string{"PRODUCED", "SHIPPED", "TREATED", "DISPOSED", "RECALLED", "RETURNED"}

func buildSummaryFilter(filters *model.HistoryFilters) (string, []interface{}) {
	clauses := []string{"he.action_type = ANY($1)"}
	args := []interface{}{pq.Array(summaryActions)}
	argCount := 2

	add := func(clause string, value interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, argCount))
		args = append(args, value)
		argCount++
	}

	if filters.OrganizationID != uuid.Nil {
		add("(he.from_owner_org_id = $%[1]d OR he.to_owner_org_id = $%[1]d)", filters.OrganizationID)
	}
	if filters.ProductID != uuid.Nil {
		add("l.product_id = $%d", filters.ProductID)
	}
	if filters.LotID != uuid.Nil {
		add("vc.lot_id = $%d", filters.LotID)
	}
	if filters.ActionType != "" {
		add("he.action_type = $%d", filters.ActionType)
	}
	if !filters.StartDate.IsZero() {
		add("he.created_at >= $%d", filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		add("he.created_at <= $%d", filters.EndDate)
	}
	if !filters.IncludeRecalls {
		clauses = append(clauses, "he.is_recall = false")
	}

	return strings.Join(clauses, " AND "), args
}

const summaryCTE = `
	WITH summaries AS (
		SELECT he.ref_type, he.ref_id, he.action_type, he.is_recall,
			   he.from_owner_org_id, he.to_owner_org_id,
			   COUNT(DISTINCT he.virtual_code_id) AS quantity,
			   MIN(he.created_at) AS occurred_at
		FROM history_events he
		JOIN virtual_codes vc ON vc.id = he.virtual_code_id
		JOIN lots l ON l.id = vc.lot_id
		WHERE %s
		GROUP BY he.ref_type, he.ref_id, he.action_type, he.is_recall,
				 he.from_owner_org_id, he.to_owner_org_id
	)
`

func (r *historyRepository) ListSummaries(ctx context.Context, filters *model.HistoryFilters, p model.Pagination) ([]*model.EventSummary, int, error) {
	where, args := buildSummaryFilter(filters)
	cte := fmt.Sprintf(summaryCTE, where)

	var total int
	if err := r.db.GetContext(ctx, &total, cte+`SELECT COUNT(*) FROM summaries`, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count history summaries: %w", err)
	}

	query := cte + fmt.Sprintf(`
		SELECT s.ref_type, s.ref_id, s.action_type, s.is_recall, s.quantity,
			   s.occurred_at,
			   o_from.name AS from_owner_name, o_to.name AS to_owner_name
		FROM summaries s
		LEFT JOIN organizations o_from ON o_from.id = s.from_owner_org_id
		LEFT JOIN organizations o_to ON o_to.id = s.to_owner_org_id
		ORDER BY s.occurred_at DESC, s.ref_id DESC
		LIMIT $%d OFFSET $%d
	`, len(args)+1, len(args)+2)
	args = append(args, p.PageSize, p.Offset())

	var summaries []*model.EventSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list history summaries: %w", err)
	}

	if err := r.attachLotLines(ctx, summaries); err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (r *historyRepository) ListSummariesCursor(ctx context.Context, filters *model.HistoryFilters, cursor string, limit int) ([]*model.EventSummary, string, error) {
	where, args := buildSummaryFilter(filters)
	cte := fmt.Sprintf(summaryCTE, where)

	cursorClause := ""
	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", apperrors.Validation("invalid cursor", err)
		}
		cursorClause = fmt.Sprintf(" WHERE (s.occurred_at, s.ref_id) < ($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, ts, id)
	}

	query := cte + fmt.Sprintf(`
		SELECT s.ref_type, s.ref_id, s.action_type, s.is_recall, s.quantity,
			   s.occurred_at,
			   o_from.name AS from_owner_name, o_to.name AS to_owner_name
		FROM summaries s
		LEFT JOIN organizations o_from ON o_from.id = s.from_owner_org_id
		LEFT JOIN organizations o_to ON o_to.id = s.to_owner_org_id
		%s
		ORDER BY s.occurred_at DESC, s.ref_id DESC
		LIMIT $%d
	`, cursorClause, len(args)+1)
	args = append(args, limit+1)

	var summaries []*model.EventSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, "", fmt.Errorf("failed to list history summaries: %w", err)
	}

	next := ""
	if len(summaries) > limit {
		summaries = summaries[:limit]
		last := summaries[len(summaries)-1]
		next = encodeCursor(last.OccurredAt, last.RefID)
	}

	if err := r.attachLotLines(ctx, summaries); err != nil {
		return nil, "", err
	}
	return summaries, next, nil
}

// attachLotLines fills the per-lot quantity breakdown for a page of
// summaries with one grouped query.
func (r *historyRepository) attachLotLines(ctx context.Context, summaries []*model.EventSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	refIDs := make([]uuid.UUID, 0, len(summaries))
	for _, s := range summaries {
		refIDs = append(refIDs, s.RefID)
	}

	query := `
		SELECT he.ref_id, l.id AS lot_id, l.lot_number,
			   COUNT(DISTINCT he.virtual_code_id) AS quantity
		FROM history_events he
		JOIN virtual_codes vc ON vc.id = he.virtual_code_id
		JOIN lots l ON l.id = vc.lot_id
		WHERE he.ref_id = ANY($1)
		GROUP BY he.ref_id, l.id, l.lot_number
	`
	rows := []struct {
		RefID     uuid.UUID `db:"ref_id"`
		LotID     uuid.UUID `db:"lot_id"`
		LotNumber string    `db:"lot_number"`
		Quantity  int       `db:"quantity"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(refIDs)); err != nil {
		return fmt.Errorf("failed to load lot breakdowns: %w", err)
	}

	byRef := make(map[uuid.UUID][]model.LotLine)
	for _, row := range rows {
		byRef[row.RefID] = append(byRef[row.RefID], model.LotLine{
			LotID:     row.LotID,
			LotNumber: row.LotNumber,
			Quantity:  row.Quantity,
		})
	}
	for _, s := range summaries {
		s.Lots = byRef[s.RefID]
	}
	return nil
}

func encodeCursor(occurredAt time.Time, refID uuid.UUID) string {
	raw := fmt.Sprintf("%d|%s", occurredAt.UnixNano(), refID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return time.Unix(0, nanos), id, nil
}
