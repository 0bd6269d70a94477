package domain

// User is a registered library patron.
type User struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone" bson:"phone"`
}

// UserDeletePolicy decides which loans block the deletion of a user.
type UserDeletePolicy string

const (
	// DeleteBlockedByAnyLoan refuses deletion while any loan, open or returned, references the user.
	DeleteBlockedByAnyLoan UserDeletePolicy = "any"
	// DeleteBlockedByOpenLoan refuses deletion only while an open loan references the user.
	DeleteBlockedByOpenLoan UserDeletePolicy = "open"
)

// Valid reports whether p is a known policy.
func (p UserDeletePolicy) Valid() bool {
	return p == DeleteBlockedByAnyLoan || p == DeleteBlockedByOpenLoan
}
