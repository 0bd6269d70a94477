package domain

// Publication year bounds accepted for a book.
const (
	MinPublicationYear = 1000
	MaxPublicationYear = 2100
)

// Book is a catalog entry together with its availability counter.
type Book struct {
	ID              string `json:"id" bson:"_id"`
	Title           string `json:"title" bson:"title"`
	Author          string `json:"author" bson:"author"`
	ISBN            string `json:"isbn" bson:"isbn"`
	PublicationYear int    `json:"publicationYear" bson:"publication_year"`
	// AvailableUnits is the number of lendable copies not currently on loan.
	// Only the loan ledger changes it after creation.
	AvailableUnits int `json:"availableUnits" bson:"available_units"`
}

// IsAvailable reports whether at least one copy can be lent right now.
func (b Book) IsAvailable() bool {
	return b.AvailableUnits > 0
}
