package models

type Stats struct {
	Total        int64 `json:"total"`
	Premium      int64 `json:"premium"`
	Free         int64 `json:"free"`
	ExpiringSoon int64 `json:"expiringSoon"`
	NewThisMonth int64 `json:"newThisMonth"`
}
