package shared

import "fmt"

// ItemLockKey builds redis keys for per-item stock ledger critical sections.
func ItemLockKey(orgID, itemID int64) string {
	return fmt.Sprintf("ledger:org:%d:item:%d:lock", orgID, itemID)
}
