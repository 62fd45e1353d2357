package resolver

import (
	"context"

	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
)

// strategyLookup labels single-entity reads that are not order listings.
const strategyLookup Strategy = "lookup"

// FindMember loads one member.
func (r *Resolver) FindMember(ctx context.Context, id int64) (*domain.Member, error) {
	var member *domain.Member
	err := r.run(ctx, strategyLookup, "FindMember", func(ctx context.Context, st *fetchState) (int, error) {
		var err error
		member, err = st.member(ctx, id)
		return 1, err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// FindMembersByName returns members whose name equals name exactly.
func (r *Resolver) FindMembersByName(ctx context.Context, name string) ([]domain.Member, error) {
	return r.listMembers(ctx, "FindMembersByName", func() (planner.SQLQuery, error) {
		return planner.PlanMembersByName(name)
	})
}

// ListMembers returns every member ordered by id.
func (r *Resolver) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return r.listMembers(ctx, "ListMembers", planner.PlanMembers)
}

func (r *Resolver) listMembers(ctx context.Context, op string, plan func() (planner.SQLQuery, error)) ([]domain.Member, error) {
	var members []domain.Member
	err := r.run(ctx, strategyLookup, op, func(ctx context.Context, st *fetchState) (int, error) {
		planned, err := plan()
		if err != nil {
			return 0, err
		}
		rows, err := st.query(ctx, planned, planner.MemberColumnCount)
		if err != nil {
			return 0, err
		}
		members = make([]domain.Member, 0, len(rows))
		for _, vals := range rows {
			member, err := decodeMember(vals)
			if err != nil {
				return 0, err
			}
			members = append(members, *member)
		}
		return len(members), nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// FindItem loads one item with its subtype payload.
func (r *Resolver) FindItem(ctx context.Context, id int64) (*domain.Item, error) {
	var item *domain.Item
	err := r.run(ctx, strategyLookup, "FindItem", func(ctx context.Context, st *fetchState) (int, error) {
		var err error
		item, err = st.item(ctx, id)
		return 1, err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns every item ordered by id.
func (r *Resolver) ListItems(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	err := r.run(ctx, strategyLookup, "ListItems", func(ctx context.Context, st *fetchState) (int, error) {
		planned, err := planner.PlanItems()
		if err != nil {
			return 0, err
		}
		rows, err := st.query(ctx, planned, planner.ItemColumnCount)
		if err != nil {
			return 0, err
		}
		items = make([]domain.Item, 0, len(rows))
		for _, vals := range rows {
			item, err := decodeItem(vals)
			if err != nil {
				return 0, err
			}
			if item != nil {
				items = append(items, *item)
			}
		}
		return len(items), nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
