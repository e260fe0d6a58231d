package model

import (
	"encoding/json"
	"strings"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON 遠端 API 回傳的 id 欄位為 _id
func (u *User) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string `json:"id"`
		MongoID  string `json:"_id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		UserName string `json:"username"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	u.Name = raw.Name
	if u.Name == "" {
		u.Name = raw.UserName
	}
	u.Email = raw.Email
	return nil
}

// Valid 至少要有 email，所有使用者資料都以 email 作為命名空間
func (u User) Valid() bool {
	return strings.TrimSpace(u.Email) != ""
}
