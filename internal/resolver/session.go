package resolver

import (
	"context"
	"sync"
	"sync/atomic"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/observability"
	"ordergraph/internal/planner"
)

type sessionKey struct{}

// WithSession binds a store session to the request. Every resolver call made with
// the returned context issues its queries on that session.
func WithSession(ctx context.Context, session dbexec.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session bound by WithSession, if any.
func SessionFromContext(ctx context.Context) dbexec.Session {
	if ctx == nil {
		return nil
	}
	session, _ := ctx.Value(sessionKey{}).(dbexec.Session)
	return session
}

// fetchState is the bookkeeping of one resolver invocation. It is created per call
// and dropped when the call returns.
type fetchState struct {
	querier dbexec.Querier
	// batchQuerier serves chunk queries; it differs from querier only when chunks run in parallel.
	batchQuerier dbexec.Querier
	metrics      *observability.FetchMetrics
	roundTrips   atomic.Int64

	mu         sync.Mutex
	members    map[int64]*domain.Member
	deliveries map[int64]*domain.Delivery
	items      map[int64]*domain.Item
}

func newFetchState(querier, batchQuerier dbexec.Querier, metrics *observability.FetchMetrics) *fetchState {
	if batchQuerier == nil {
		batchQuerier = querier
	}
	return &fetchState{
		querier:      querier,
		batchQuerier: batchQuerier,
		metrics:      metrics,
		members:      make(map[int64]*domain.Member),
		deliveries:   make(map[int64]*domain.Delivery),
		items:        make(map[int64]*domain.Item),
	}
}

func (s *fetchState) query(ctx context.Context, planned planner.SQLQuery, width int) ([][]interface{}, error) {
	return s.queryOn(ctx, s.querier, planned, width)
}

func (s *fetchState) batchQuery(ctx context.Context, planned planner.SQLQuery, width int) ([][]interface{}, error) {
	return s.queryOn(ctx, s.batchQuerier, planned, width)
}

func (s *fetchState) queryOn(ctx context.Context, q dbexec.Querier, planned planner.SQLQuery, width int) ([][]interface{}, error) {
	if planned.IsEmpty() {
		return nil, nil
	}
	s.roundTrips.Add(1)
	rows, err := q.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, width)
}

// member returns the member from the identity map, loading it on first use.
func (s *fetchState) member(ctx context.Context, id int64) (*domain.Member, error) {
	s.mu.Lock()
	cached, ok := s.members[id]
	s.mu.Unlock()
	if ok {
		s.metrics.RecordIdentityMapHit(ctx, planner.TableMember)
		return cached, nil
	}

	planned, err := planner.PlanMemberByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, planned, planner.MemberColumnCount)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Entity: planner.TableMember, ID: id}
	}
	member, err := decodeMember(rows[0])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.members[id] = member
	s.mu.Unlock()
	return member, nil
}

func (s *fetchState) delivery(ctx context.Context, id int64) (*domain.Delivery, error) {
	s.mu.Lock()
	cached, ok := s.deliveries[id]
	s.mu.Unlock()
	if ok {
		s.metrics.RecordIdentityMapHit(ctx, planner.TableDelivery)
		return cached, nil
	}

	planned, err := planner.PlanDeliveryByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, planned, planner.DeliveryColumnCount)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Entity: planner.TableDelivery, ID: id}
	}
	delivery, err := decodeDelivery(rows[0])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.deliveries[id] = delivery
	s.mu.Unlock()
	return delivery, nil
}

func (s *fetchState) item(ctx context.Context, id int64) (*domain.Item, error) {
	s.mu.Lock()
	cached, ok := s.items[id]
	s.mu.Unlock()
	if ok {
		s.metrics.RecordIdentityMapHit(ctx, planner.TableItem)
		return cached, nil
	}

	planned, err := planner.PlanItemByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, planned, planner.ItemColumnCount)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Entity: planner.TableItem, ID: id}
	}
	item, err := decodeItem(rows[0])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items[id] = item
	s.mu.Unlock()
	return item, nil
}
