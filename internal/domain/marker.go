package domain

// MarkerPermission is a single access right on a marker account.
type MarkerPermission string

const (
	PermissionAdmin    MarkerPermission = "admin"
	PermissionBurn     MarkerPermission = "burn"
	PermissionDelete   MarkerPermission = "delete"
	PermissionDeposit  MarkerPermission = "deposit"
	PermissionMint     MarkerPermission = "mint"
	PermissionTransfer MarkerPermission = "transfer"
	PermissionWithdraw MarkerPermission = "withdraw"
)

// AccessGrant is one entry of a marker's permission-grant list.
type AccessGrant struct {
	Address     string
	Permissions []MarkerPermission
}

// MarkerAccount is a point-in-time snapshot of an external marker account:
// the custodial escrow account or a pledge's collateral receipt token. The
// snapshot is queried fresh before every money-moving operation because
// grants can be revoked externally between calls.
type MarkerAccount struct {
	Address string
	Denom   string
	Supply  uint64
	Grants  []AccessGrant
}

// HasGrant reports whether addr appears in the grant list with a permission
// set that covers every required permission.
func (m MarkerAccount) HasGrant(addr string, required ...MarkerPermission) bool {
	for _, grant := range m.Grants {
		if grant.Address != addr {
			continue
		}
		for _, perm := range required {
			if !grantHas(grant, perm) {
				return false
			}
		}
		return true
	}
	return false
}

func grantHas(grant AccessGrant, perm MarkerPermission) bool {
	for _, p := range grant.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
