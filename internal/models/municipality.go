// internal/models/municipality.go

package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Municipality is one entry of the official Swiss municipality registry.
type Municipality struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// BFSNumber is the official identifier issued by the Federal Statistical
	// Office. Unique across the registry.
	BFSNumber int `bson:"bfs_number" json:"bfs_number" validate:"required,min=1"`

	Name       string `bson:"name" json:"name" validate:"required"`
	Canton     string `bson:"canton" json:"canton" validate:"required,len=2"`
	PostalCode string `bson:"postal_code" json:"postal_code"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (m *Municipality) DisplayName() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Canton)
}
