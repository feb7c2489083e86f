package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is an attachment record. StoragePath is either an opaque blob locator
// (uploaded file) or a literal URL (link attachment, IsLink true).
type File struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID   string             `bson:"projectId" json:"projectId"`
	Name        string             `bson:"name" json:"name"`
	StoragePath string             `bson:"storagePath" json:"storagePath"`
	MimeType    string             `bson:"mimeType" json:"mimeType"`
	Size        int64              `bson:"size" json:"size"`
	IsLink      bool               `bson:"isLink" json:"isLink"`
	UploadedBy  string             `bson:"uploadedBy" json:"uploadedBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
