package monitor

import (
	"sync"
	"time"
)

// Claim is an advisory reservation of a target by a user
type Claim struct {
	MemberID  int64
	UserID    string
	UserName  string
	ClaimedAt time.Time
}

// ClaimOutcome is the result of toggling a claim
type ClaimOutcome int

const (
	ClaimTaken ClaimOutcome = iota
	ClaimReleased
	ClaimHeldByOther
)

// Claims is a set of exclusive per-member locks
type Claims struct {
	mu     sync.Mutex
	claims map[int64]Claim
}

// NewClaims creates an empty claim set
func NewClaims() *Claims {
	return &Claims{claims: make(map[int64]Claim)}
}

// Toggle claims the member for the user, releases it if the user already
// holds it, or reports the current holder. The check and the set happen
// under one lock.
func (c *Claims) Toggle(memberID int64, userID, userName string, now time.Time) (ClaimOutcome, Claim) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.claims[memberID]; ok {
		if existing.UserID == userID {
			delete(c.claims, memberID)
			return ClaimReleased, existing
		}
		return ClaimHeldByOther, existing
	}

	claim := Claim{
		MemberID:  memberID,
		UserID:    userID,
		UserName:  userName,
		ClaimedAt: now,
	}
	c.claims[memberID] = claim
	return ClaimTaken, claim
}

// Get returns the claim on a member, if any
func (c *Claims) Get(memberID int64) (Claim, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	claim, ok := c.claims[memberID]
	return claim, ok
}

// Release drops the claim on a member regardless of holder
func (c *Claims) Release(memberID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, memberID)
}

// Len returns the number of active claims
func (c *Claims) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}

// Clear drops every claim
func (c *Claims) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = make(map[int64]Claim)
}
