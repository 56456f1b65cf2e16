package domain

import "time"

// RelationshipContext describes who the visitor is shopping for.
type RelationshipContext string

const (
	RelationshipUnknown      RelationshipContext = "unknown"
	RelationshipSingle       RelationshipContext = "single"
	RelationshipCouple       RelationshipContext = "couple"
	RelationshipFamily       RelationshipContext = "family"
	RelationshipFriends      RelationshipContext = "friends"
	RelationshipProfessional RelationshipContext = "professional"
)

// CommunicationStyle is the register the visitor writes in.
type CommunicationStyle string

const (
	StyleUnknown  CommunicationStyle = ""
	StyleFormal   CommunicationStyle = "formal"
	StyleCasual   CommunicationStyle = "casual"
	StyleFriendly CommunicationStyle = "friendly"
)

// PriceSensitivity tags how the visitor reacts to price.
type PriceSensitivity string

const (
	PriceBudget   PriceSensitivity = "budget"
	PriceStandard PriceSensitivity = "standard"
	PricePremium  PriceSensitivity = "premium"
)

// DefaultProfileListSize bounds interests, concerns and buying signals.
const DefaultProfileListSize = 8

// RecentList keeps the most recent distinct values up to a fixed size.
// Re-pushing an existing value moves it to the most recent position.
type RecentList struct {
	Items []string `json:"items"`
	Max   int      `json:"max"`
}

// NewRecentList creates an empty list bounded to max entries.
func NewRecentList(max int) RecentList {
	if max <= 0 {
		max = DefaultProfileListSize
	}
	return RecentList{Max: max}
}

// Push appends v, dropping the oldest entry on overflow.
func (l *RecentList) Push(v string) {
	if v == "" {
		return
	}
	if l.Max <= 0 {
		l.Max = DefaultProfileListSize
	}
	for i, item := range l.Items {
		if item == v {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			break
		}
	}
	l.Items = append(l.Items, v)
	if over := len(l.Items) - l.Max; over > 0 {
		l.Items = append([]string(nil), l.Items[over:]...)
	}
}

// Contains reports whether v is in the list.
func (l RecentList) Contains(v string) bool {
	for _, item := range l.Items {
		if item == v {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (l RecentList) Len() int {
	return len(l.Items)
}

// UserProfile is derived per session from what the visitor writes.
type UserProfile struct {
	Relationship       RelationshipContext `json:"relationship"`
	Interests          RecentList          `json:"interests"`
	Concerns           RecentList          `json:"concerns"`
	CommunicationStyle CommunicationStyle  `json:"communicationStyle,omitempty"`
	BuyingSignals      RecentList          `json:"buyingSignals"`
	PriceSensitivity   PriceSensitivity    `json:"priceSensitivity"`
	MessageCount       int                 `json:"messageCount"`
	LastActivity       time.Time           `json:"lastActivity"`
}

// NewUserProfile returns a profile with neutral tags.
func NewUserProfile() *UserProfile {
	return &UserProfile{
		Relationship:     RelationshipUnknown,
		Interests:        NewRecentList(DefaultProfileListSize),
		Concerns:         NewRecentList(DefaultProfileListSize),
		BuyingSignals:    NewRecentList(DefaultProfileListSize),
		PriceSensitivity: PriceStandard,
	}
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Interests.Items = append([]string(nil), p.Interests.Items...)
	c.Concerns.Items = append([]string(nil), p.Concerns.Items...)
	c.BuyingSignals.Items = append([]string(nil), p.BuyingSignals.Items...)
	return &c
}
