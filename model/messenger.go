package model

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is a two-party thread. The pair is stored ordered (UserLowID < UserHighID)
// so the unique index covers the unordered pair.
type Conversation struct {
	gorm.Model
	UserLowID      uint      `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"-"`
	UserHighID     uint      `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"-"`
	UserLow        User      `gorm:"foreignKey:UserLowID" json:"-"`
	UserHigh       User      `gorm:"foreignKey:UserHighID" json:"-"`
	LastActivityAt time.Time `gorm:"not null;index" json:"lastActivityAt"`
}

func (c *Conversation) HasMember(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

func (c *Conversation) MemberIDs() []uint {
	return []uint{c.UserLowID, c.UserHighID}
}

// OtherMembers returns every member except userID.
func (c *Conversation) OtherMembers(userID uint) []uint {
	others := make([]uint, 0, 1)
	for _, id := range c.MemberIDs() {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}

// Members returns the preloaded members.
func (c *Conversation) Members() []User {
	return []User{c.UserLow, c.UserHigh}
}

func (c *Conversation) Member(userID uint) (User, bool) {
	for _, u := range c.Members() {
		if u.ID == userID {
			return u, true
		}
	}
	return User{}, false
}

type Message struct {
	ID             uint         `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time    `gorm:"not null;index" json:"createdAt"`
	ConversationID uint         `gorm:"not null;index" json:"conversationId"`
	Conversation   Conversation `gorm:"foreignKey:ConversationID" json:"-"`
	SenderID       uint         `gorm:"not null;index" json:"senderId"`
	Sender         User         `gorm:"foreignKey:SenderID" json:"-"`
	Content        string       `gorm:"not null" json:"content"`
	Read           bool         `gorm:"not null;default:false" json:"read"`
}

// MessageView is a message as sent to clients, with its sender's name.
type MessageView struct {
	ID             uint        `json:"id"`
	ConversationID uint        `json:"conversationId"`
	SenderID       uint        `json:"senderId"`
	Sender         UserSummary `json:"sender"`
	Content        string      `json:"content"`
	Read           bool        `json:"read"`
	CreatedAt      time.Time   `json:"createdAt"`
}

func (m Message) View() MessageView {
	sender := m.Sender.Summary()
	sender.Email = ""
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         sender,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
}

// ConversationView is a conversation as listed to one of its members. Messages holds at
// most the newest message.
type ConversationView struct {
	ID             uint          `json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Users          []UserSummary `json:"users"`
	Messages       []MessageView `json:"messages"`
}

func (c Conversation) View(last *Message) ConversationView {
	view := ConversationView{
		ID:             c.ID,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
		Users:          []UserSummary{},
		Messages:       []MessageView{},
	}
	for _, u := range c.Members() {
		if u.ID != 0 {
			view.Users = append(view.Users, u.Summary())
		}
	}
	if last != nil {
		view.Messages = append(view.Messages, last.View())
	}
	return view
}
