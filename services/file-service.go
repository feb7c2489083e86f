package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/storage"
	"studioflow-project/backend/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FileService manages project attachments: uploaded blobs on the blob store
// and link attachments that only carry a URL.
type FileService struct {
	filesCollection    *mongo.Collection
	projectsCollection *mongo.Collection
	blobs              *storage.BlobStore
	dispatcher         *realtime.Dispatcher
}

func NewFileService(db *mongo.Database, blobs *storage.BlobStore, dispatcher *realtime.Dispatcher) *FileService {
	return &FileService{
		filesCollection:    db.Collection("files"),
		projectsCollection: db.Collection("projects"),
		blobs:              blobs,
		dispatcher:         dispatcher,
	}
}

// Upload stores the attachment bytes and its record. The locator is derived
// from the project and a fresh uuid, never from the client-supplied name.
func (s *FileService) Upload(ctx context.Context, principalID, projectID, name, mimeType string, size int64, r io.Reader) (*models.File, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", utils.ErrValidation)
	}
	if !storage.AllowedMimeType(mimeType) {
		return nil, fmt.Errorf("%w: file type %q is not allowed", utils.ErrValidation, mimeType)
	}
	if size > storage.MaxObjectSize {
		return nil, fmt.Errorf("%w: file exceeds the maximum size", utils.ErrValidation)
	}
	if err := s.verifyProject(ctx, projectID); err != nil {
		return nil, err
	}

	locator := path.Join(projectID, uuid.NewString()+path.Ext(name))
	if _, err := s.blobs.Upload(locator, r); err != nil {
		return nil, fmt.Errorf("failed to store file: %v", err)
	}

	file := models.File{
		ID:          primitive.NewObjectID(),
		ProjectID:   projectID,
		Name:        name,
		StoragePath: locator,
		MimeType:    mimeType,
		Size:        size,
		UploadedBy:  principalID,
		CreatedAt:   time.Now(),
	}
	if _, err := s.filesCollection.InsertOne(ctx, file); err != nil {
		s.blobs.Remove(locator)
		return nil, fmt.Errorf("failed to record file: %v", err)
	}

	s.publish(models.EventInsert, file)
	return &file, nil
}

// AddLink records a link attachment. No bytes are stored.
func (s *FileService) AddLink(ctx context.Context, principalID, projectID, name, url string) (*models.File, error) {
	if name == "" || url == "" {
		return nil, fmt.Errorf("%w: link name and url are required", utils.ErrValidation)
	}
	if err := s.verifyProject(ctx, projectID); err != nil {
		return nil, err
	}

	file := models.File{
		ID:          primitive.NewObjectID(),
		ProjectID:   projectID,
		Name:        name,
		StoragePath: url,
		IsLink:      true,
		UploadedBy:  principalID,
		CreatedAt:   time.Now(),
	}
	if _, err := s.filesCollection.InsertOne(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to record link: %v", err)
	}

	s.publish(models.EventInsert, file)
	return &file, nil
}

// ByProject returns the attachments of one project, newest first.
func (s *FileService) ByProject(ctx context.Context, projectID string) ([]models.File, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.filesCollection.Find(ctx, bson.M{"projectId": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve files: %v", err)
	}
	defer cursor.Close(ctx)

	files := []models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %v", err)
	}
	return files, nil
}

// Get returns one attachment record.
func (s *FileService) Get(ctx context.Context, fileID string) (*models.File, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid file id", utils.ErrValidation)
	}

	var file models.File
	if err := s.filesCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&file); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve file: %v", err)
	}
	return &file, nil
}

// Open returns the record and a reader over the stored bytes. Link
// attachments have no bytes to read.
func (s *FileService) Open(ctx context.Context, fileID string) (*models.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file.IsLink {
		return nil, nil, fmt.Errorf("%w: link attachments have no stored content", utils.ErrValidation)
	}

	reader, err := s.blobs.Download(file.StoragePath)
	if err != nil {
		return nil, nil, utils.ErrNotFound
	}
	return file, reader, nil
}

// Delete removes the record and, for uploaded files, the stored bytes.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	file, err := s.Get(ctx, fileID)
	if err != nil {
		return err
	}

	if _, err := s.filesCollection.DeleteOne(ctx, bson.M{"_id": file.ID}); err != nil {
		return fmt.Errorf("failed to delete file record: %v", err)
	}
	if !file.IsLink {
		s.blobs.Remove(file.StoragePath)
	}

	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventDelete,
		Collection: "files",
		ID:         fileID,
		Fields:     map[string]string{"projectId": file.ProjectID},
	})
	return nil
}

func (s *FileService) verifyProject(ctx context.Context, projectID string) error {
	objectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}
	if err := s.projectsCollection.FindOne(ctx, bson.M{"_id": objectID}).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.ErrNotFound
		}
		return fmt.Errorf("failed to verify project: %v", err)
	}
	return nil
}

func (s *FileService) publish(eventType models.EventType, file models.File) {
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       eventType,
		Collection: "files",
		ID:         file.ID.Hex(),
		CreatedAt:  file.CreatedAt,
		Record:     file,
		Fields:     map[string]string{"projectId": file.ProjectID},
	})
}
