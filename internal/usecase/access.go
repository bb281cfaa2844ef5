package usecase

import (
	"context"
	"errors"
	"fmt"

	repo "tigu/internal/repository"
)

// 操作しているユーザーと所属会社
type Actor struct {
	UserID     string
	IsAdmin    bool
	CompanyIDs []string
}

func (a Actor) MemberOf(companyID string) bool {
	for _, id := range a.CompanyIDs {
		if id == companyID {
			return true
		}
	}
	return false
}

// 一覧の閲覧範囲
func (a Actor) Scope(side repo.Side) repo.PartyScope {
	return repo.PartyScope{
		All:        a.IsAdmin,
		UserID:     a.UserID,
		CompanyIDs: a.CompanyIDs,
		Side:       side,
	}
}

// 買い手本人・買い手会社・売り手会社のどれか
func (a Actor) IsParty(buyerUserID, buyerCompanyID, supplierCompanyID string) bool {
	return a.IsAdmin || a.UserID == buyerUserID || a.MemberOf(buyerCompanyID) || a.MemberOf(supplierCompanyID)
}

func loadActor(ctx context.Context, r repo.TxRepos, userID string) (Actor, error) {
	if userID == "" {
		return Actor{}, unauthorized()
	}

	u, err := r.Users().FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return Actor{}, unauthorized()
	}
	if err != nil {
		return Actor{}, fmt.Errorf("find user: %w", err)
	}
	if !u.IsActive {
		return Actor{}, unauthorized()
	}

	members, err := r.Companies().ListMemberships(ctx, userID)
	if err != nil {
		return Actor{}, fmt.Errorf("list memberships: %w", err)
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.CompanyID)
	}

	return Actor{UserID: u.ID, IsAdmin: u.IsAdmin(), CompanyIDs: ids}, nil
}

func parseSide(s string) (repo.Side, error) {
	switch repo.Side(s) {
	case repo.SideAny, repo.SideBuyer, repo.SideSupplier:
		return repo.Side(s), nil
	}
	return "", badRequest("invalid role")
}
