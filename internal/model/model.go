package model

import (
	"time"
)

type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookUnavailable BookStatus = "unavailable"
)

func (s BookStatus) Valid() bool {
	return s == BookAvailable || s == BookUnavailable
}

type ExchangeStatus string

const (
	ExchangePending  ExchangeStatus = "pending"
	ExchangeAccepted ExchangeStatus = "accepted"
	ExchangeDeclined ExchangeStatus = "declined"
)

// Terminal reports whether the status allows no further transition.
func (s ExchangeStatus) Terminal() bool {
	return s == ExchangeAccepted || s == ExchangeDeclined
}

type Book struct {
	ID          int        `json:"-" db:"id"`
	BookUid     string     `json:"bookUid" db:"book_uid"`
	Title       string     `json:"title" db:"title"`
	Author      string     `json:"author" db:"author"`
	Genre       string     `json:"genre" db:"genre"`
	Description string     `json:"description" db:"description"`
	Location    string     `json:"location" db:"location"`
	Status      BookStatus `json:"status" db:"status"`
	OwnerID     int        `json:"userId" db:"user_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
	Location    string `json:"location"`
	OwnerID     int    `json:"userId" validate:"required"`
}

type UpdateBookRequest struct {
	Title       *string     `json:"title"`
	Author      *string     `json:"author"`
	Genre       *string     `json:"genre"`
	Description *string     `json:"description"`
	Location    *string     `json:"location"`
	Status      *BookStatus `json:"status"`
}

type BookFilter struct {
	Title    string
	Author   string
	Genre    string
	Location string
	Status   BookStatus
	SortBy   string
}

type Exchange struct {
	ID               int            `json:"-" db:"id"`
	ExchangeUid      string         `json:"exchangeUid" db:"exchange_uid"`
	SenderID         int            `json:"senderId" db:"sender_id"`
	ReceiverID       int            `json:"receiverId" db:"receiver_id"`
	OfferedBookUid   string         `json:"offeredBookUid" db:"offered_book_uid"`
	RequestedBookUid string         `json:"requestedBookUid" db:"requested_book_uid"`
	Status           ExchangeStatus `json:"status" db:"status"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
}

type CreateExchangeRequest struct {
	SenderID         int    `json:"senderId" validate:"required"`
	ReceiverID       int    `json:"receiverId" validate:"required"`
	OfferedBookUid   string `json:"offeredBookUid" validate:"required,uuid"`
	RequestedBookUid string `json:"requestedBookUid" validate:"required,uuid"`
}

type ResolveExchangeRequest struct {
	Status string `json:"status" validate:"required"`
}

// UserExchanges splits a user's exchanges by their role in them.
type UserExchanges struct {
	Sent     []Exchange `json:"sent"`
	Received []Exchange `json:"received"`
}

// ExchangeSummary is the joined projection served on the incoming and
// outgoing listings: book titles plus the counterpart's username.
type ExchangeSummary struct {
	ExchangeUid        string         `json:"exchangeUid" db:"exchange_uid"`
	OfferedBookTitle   string         `json:"offeredBookTitle" db:"offered_book_title"`
	RequestedBookTitle string         `json:"requestedBookTitle" db:"requested_book_title"`
	Counterpart        string         `json:"counterpart" db:"counterpart"`
	Status             ExchangeStatus `json:"status" db:"status"`
}

type User struct {
	ID           int    `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password"`
}

type EventType string

const (
	EventProposed EventType = "proposed"
	EventAccepted EventType = "accepted"
	EventDeclined EventType = "declined"
)

// ExchangeEvent is the message published to the exchange-events topic and
// persisted by the stats consumer.
type ExchangeEvent struct {
	ExchangeUid string    `json:"exchangeUid" db:"exchange_uid"`
	EventType   EventType `json:"eventType" db:"event_type"`
	SenderID    int       `json:"senderId" db:"sender_id"`
	ReceiverID  int       `json:"receiverId" db:"receiver_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

type Stats struct {
	Users        int             `json:"users" db:"users"`
	Books        int             `json:"books" db:"books"`
	Exchanges    int             `json:"exchanges" db:"exchanges"`
	RecentEvents []ExchangeEvent `json:"recentEvents"`
}
