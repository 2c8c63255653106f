package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"marketchat/internal/adapter/api/handler"
	apimiddleware "marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	domain "marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/internal/infrastructure/storage"
	"marketchat/pkg/config"
	"marketchat/pkg/logger"
)

// stores is the backend-specific half of the wiring.
type stores struct {
	conversations     domain.ConversationRepository
	customOrders      domain.CustomOrderRepository
	fulfillmentOrders domain.FulfillmentOrderRepository
	notifications     domain.NotificationRepository
	users             domain.UserRepository

	verifier apimiddleware.TokenVerifier
	identity handler.DisplayNamer
	uploader handler.ImageUploader
	devUsers handler.UserSeeder

	closers []func() error
}

func (s *stores) Close() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to close client: %v", err)
		}
	}
}

func credentials(cfg *config.Config) []option.ClientOption {
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))}
	}
	if cfg.ServiceAccountPath != "" {
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.ServiceAccountPath)}
	}
	logger.Info("Using application default credentials")
	return nil
}

func newFirestoreStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.ServiceAccountPath != "" {
		if _, err := os.Stat(cfg.ServiceAccountPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account file does not exist: %s", cfg.ServiceAccountPath)
		}
	}
	opts := credentials(cfg)

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Auth: %w", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	firebaseAuth := firebase.NewFirebaseAuthClient(authClient)
	s := &stores{
		conversations:     repository.NewFirestoreConversationRepository(firestoreClient),
		customOrders:      repository.NewFirestoreCustomOrderRepository(firestoreClient),
		fulfillmentOrders: repository.NewFirestoreFulfillmentOrderRepository(firestoreClient),
		notifications:     repository.NewFirestoreNotificationRepository(firestoreClient),
		users:             repository.NewFirestoreUserRepository(firestoreClient),
		verifier:          firebaseAuth,
		identity:          firebaseAuth,
		closers:           []func() error{firestoreClient.Close},
	}

	if err := s.attachUploads(ctx, cfg, opts...); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// newMemoryStores keeps everything in process. Tokens are "dev-<uid>" and users are seeded
// through /_dev/users; an "admin" user exists from the start.
func newMemoryStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	now := time.Now()
	users := repository.NewMemoryUserRepository(&entity.User{
		ID:        "admin",
		Username:  "admin",
		Role:      entity.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	})

	s := &stores{
		conversations:     repository.NewMemoryConversationRepository(nil),
		customOrders:      repository.NewMemoryCustomOrderRepository(nil),
		fulfillmentOrders: repository.NewMemoryFulfillmentOrderRepository(nil),
		notifications:     repository.NewMemoryNotificationRepository(nil),
		users:             users,
		verifier:          firebase.DevTokenVerifier{},
		devUsers:          users,
	}
	logger.Warn("Using in-memory store with development tokens; data is lost on restart")

	if err := s.attachUploads(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stores) attachUploads(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) error {
	if cfg.StorageBucket == "" {
		logger.Info("STORAGE_BUCKET not set; item image uploads disabled")
		return nil
	}

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize Cloud Storage: %w", err)
	}
	s.uploader = storageClient
	s.closers = append(s.closers, storageClient.Close)
	return nil
}
