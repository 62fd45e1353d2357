package service

import (
	"context"
	"log/slog"
	"strings"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/logging"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
)

// MemberService registers and maintains members.
type MemberService struct {
	executor dbexec.QueryExecutor
	reader   *resolver.Resolver
}

// Join registers a member and returns its id. Names are unique.
func (s *MemberService) Join(ctx context.Context, member domain.Member) (int64, error) {
	if strings.TrimSpace(member.Name) == "" {
		return 0, &domain.InvalidQueryParameterError{Parameter: "name", Reason: "must not be empty"}
	}

	var id int64
	err := inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		existing, err := s.reader.FindMembersByName(ctx, member.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &domain.DuplicateMemberError{Name: member.Name}
		}
		planned, err := planner.PlanInsertMember(member)
		if err != nil {
			return err
		}
		id, err = execInsert(ctx, tx, planned)
		if dbexec.IsDuplicateKey(err) {
			// A concurrent join committed the same name after the lookup.
			return &domain.DuplicateMemberError{Name: member.Name}
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("member joined", slog.Int64("member_id", id))
	return id, nil
}

// FindMembers lists every member.
func (s *MemberService) FindMembers(ctx context.Context) ([]domain.Member, error) {
	return s.reader.ListMembers(ctx)
}

// FindOne loads one member.
func (s *MemberService) FindOne(ctx context.Context, id int64) (*domain.Member, error) {
	return s.reader.FindMember(ctx, id)
}

// UpdateName renames an existing member.
func (s *MemberService) UpdateName(ctx context.Context, id int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return &domain.InvalidQueryParameterError{Parameter: "name", Reason: "must not be empty"}
	}
	return inTx(ctx, s.executor, func(ctx context.Context, tx dbexec.TxExecutor) error {
		if _, err := s.reader.FindMember(ctx, id); err != nil {
			return err
		}
		planned, err := planner.PlanUpdateMemberName(id, name)
		if err != nil {
			return err
		}
		err = execUpdate(ctx, tx, planned)
		if dbexec.IsDuplicateKey(err) {
			return &domain.DuplicateMemberError{Name: name}
		}
		return err
	})
}
