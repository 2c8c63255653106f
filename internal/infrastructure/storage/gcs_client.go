package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const uploadURLTTL = 15 * time.Minute

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadTicket lets a browser PUT an item image straight to the bucket.
type UploadTicket struct {
	UploadURL  string    `json:"upload_url"`
	ObjectURL  string    `json:"object_url"`
	ObjectName string    `json:"object_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
	now        func() time.Time
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
		now:        time.Now,
	}, nil
}

// IsSupportedImage reports whether contentType may be uploaded as an item image.
func IsSupportedImage(contentType string) bool {
	_, ok := imageExtensions[contentType]
	return ok
}

// ItemImageObjectName places images under custom-orders/<sellerID>/ with a unique suffix.
func ItemImageObjectName(sellerID, contentType string, id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("public/custom-orders/%s/%s-%s%s", sellerID, id.String(), at.UTC().Format("20060102150405"), imageExtensions[contentType])
}

func (c *CloudStorageClient) ItemImageUploadURL(ctx context.Context, sellerID, contentType string) (*UploadTicket, error) {
	if !IsSupportedImage(contentType) {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	now := c.now()
	name := ItemImageObjectName(sellerID, contentType, uuid.New(), now)
	expires := now.Add(uploadURLTTL)

	url, err := c.client.Bucket(c.bucketName).SignedURL(name, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     expires,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate signed URL: %v", err)
	}

	return &UploadTicket{
		UploadURL:  url,
		ObjectURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, name),
		ObjectName: name,
		ExpiresAt:  expires,
	}, nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
