package inventory

import "database/sql"

// ===== Requests =====

// 登録・更新で共通。更新も全項目の置き換え。
type ItemRequest struct {
	Model        string  `json:"model" binding:"required"`
	PreviousUser *string `json:"previousUser,omitempty"`
	CurrentUser  string  `json:"currentUser" binding:"required"`
	TransferDate string  `json:"transferDate" binding:"required"`
	// New / Good / Fair / Damaged を想定（強制はしない）
	Condition *string `json:"condition,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ===== Responses =====

type ItemResponse struct {
	ID           int64   `json:"id"`
	Model        string  `json:"model"`
	PreviousUser *string `json:"previousUser"`
	CurrentUser  string  `json:"currentUser"`
	TransferDate string  `json:"transferDate"`
	Condition    *string `json:"condition"`
	Notes        *string `json:"notes"`
}

type ListResponse struct {
	Data       []ItemResponse `json:"data"`
	TotalPages int64          `json:"totalPages"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Export はダウンロードさせるファイル一式
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ===== converters =====

func toResponse(r Record) ItemResponse {
	return ItemResponse{
		ID:           r.ID,
		Model:        r.Model,
		PreviousUser: strPtr(r.PreviousUser),
		CurrentUser:  r.CurrentUser,
		TransferDate: r.TransferDate,
		Condition:    strPtr(r.Condition),
		Notes:        strPtr(r.Notes),
	}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// 空文字は NULL として保存する
func nullStr(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
