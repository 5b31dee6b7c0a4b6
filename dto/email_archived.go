package dto

import "time"

type EmailArchived struct {
	AccountID string    `json:"accountId"`
	EmailID   string    `json:"emailId"`
	MessageID string    `json:"messageId"`
	Folder    string    `json:"folder"`
	RawPath   string    `json:"rawPath"`
	SendBy    string    `json:"sendBy"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
}
