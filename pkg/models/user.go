package models

import "fmt"

// User represents a VK user who talks to the bot
type User struct {
	ID         int64  `json:"id" db:"id"`
	UserID     int64  `json:"user_id" db:"user_id"` // VK user ID
	FirstName  string `json:"first_name" db:"first_name"`
	LastName   string `json:"last_name" db:"last_name"`
	Sex        int    `json:"sex" db:"sex"`
	CityID     int64  `json:"city_id" db:"city_id"`
	CityTitle  string `json:"city_title" db:"city_title"`
	ProfileURL string `json:"profile_url" db:"profile_url"`
}

// VKProfileURL builds a link to the VK profile page of the given user
func VKProfileURL(userID int64) string {
	return fmt.Sprintf("https://vk.com/id%d", userID)
}
