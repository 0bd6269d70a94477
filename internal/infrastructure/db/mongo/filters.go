package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// availableBook matches the book only while it still has a unit to lend.
func availableBook(id string) bson.M {
	return bson.M{"_id": id, "available_units": bson.M{"$gt": 0}}
}

// shiftUnits moves the counter by delta and bumps the revision.
func shiftUnits(delta int) bson.M {
	return bson.M{"$inc": bson.M{"available_units": delta, "revision": 1}}
}

// openLoan matches the loan only while returned_at is unset. A nil value
// matches documents where the field is missing or null.
func openLoan(id string) bson.M {
	return bson.M{"_id": id, "returned_at": nil}
}

func markReturned(at time.Time) bson.M {
	return bson.M{"$set": bson.M{"returned_at": at}}
}

// openLoansBy matches the open loans whose field equals value.
func openLoansBy(field, value string) bson.M {
	return bson.M{field: value, "returned_at": nil}
}

// applied reports whether a conditional update changed exactly one document.
func applied(res *mongo.UpdateResult) bool {
	return res != nil && res.ModifiedCount == 1
}
