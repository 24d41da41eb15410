package postgres

import (
	"context"
	"fmt"
)

// MemberRepository читает членство в группах. Таблицей владеет внешнее
// администрирование групп, здесь только чтение.
type MemberRepository struct {
	q querier
}

func NewMemberRepository(q querier) *MemberRepository {
	return &MemberRepository{q: q}
}

func (r *MemberRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, queryIsGroupMember, groupID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return ok, nil
}
