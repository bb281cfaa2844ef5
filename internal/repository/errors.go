package repository

import "errors"

var (
	// 見つからない
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrDuplicate = errors.New("duplicate")
)

// 一覧で見る立場
type Side string

const (
	SideAny      Side = ""
	SideBuyer    Side = "buyer"
	SideSupplier Side = "supplier"
)

// 注文・見積の閲覧範囲。
// All=true なら全件（管理者）。それ以外は UserID が買い手本人か、CompanyIDs が当事者のもの。
type PartyScope struct {
	All        bool
	UserID     string
	CompanyIDs []string
	Side       Side
}
