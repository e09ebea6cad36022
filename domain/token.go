package domain

type TokenStatus uint8

const (
	TokenStatusValid TokenStatus = iota
	TokenStatusReplaced
)

type Token struct {
	Id         string      `bson:"_id"`
	Status     TokenStatus `bson:"status"`
	ReplacedBy string      `bson:"replacedBy,omitempty"`
	Created    int64       `bson:"created"`
	Updated    int64       `bson:"updated"`
}
