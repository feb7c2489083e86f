package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/handlers"
	"studioflow-project/backend/logging"
	"studioflow-project/backend/middleware"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/repositories"
	"studioflow-project/backend/services"
	"studioflow-project/backend/storage"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, relying on the environment")
	}
	logging.InitLogger()

	if os.Getenv("JWT_SECRET") == "" {
		logging.Logger.Fatal("Event ID: CONFIG_MISSING, Description: JWT_SECRET is required.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB_NAME")
	if dbName == "" {
		dbName = "studioflow"
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: MONGO_CONNECT_FAILED, Description: Database connection failed: %v", err)
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(connectCtx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: MONGO_CONNECT_FAILED, Description: MongoDB ping failed: %v", err)
	}
	db := client.Database(dbName)
	logging.Logger.Info("Event ID: MONGO_CONNECTED, Description: Connected to MongoDB.")

	// Cassandra
	notificationRepo, err := repositories.NewNotificationRepo()
	if err != nil {
		logging.Logger.Fatalf("Event ID: CASS_CONNECT_FAILED, Description: Cassandra connection failed: %v", err)
	}
	defer notificationRepo.CloseSession()
	if err := notificationRepo.CreateTable(); err != nil {
		logging.Logger.Fatalf("Event ID: CASS_TABLE_FAILED, Description: Cassandra schema bootstrap failed: %v", err)
	}

	// Neo4j
	neo4jURI := os.Getenv("NEO4J_URI")
	if neo4jURI == "" {
		neo4jURI = "bolt://localhost:7687"
	}
	driver, err := neo4j.NewDriverWithContext(neo4jURI,
		neo4j.BasicAuth(os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASS"), ""))
	if err != nil {
		logging.Logger.Fatalf("Event ID: NEO4J_CONNECT_FAILED, Description: Neo4j connection failed: %v", err)
	}
	defer driver.Close(context.Background())

	// Blob store
	blobDir := os.Getenv("BLOB_DIR")
	if blobDir == "" {
		blobDir = "blobs"
	}
	blobStore, err := storage.NewBlobStore(blobDir)
	if err != nil {
		logging.Logger.Fatalf("Event ID: BLOB_STORE_FAILED, Description: Blob store bootstrap failed: %v", err)
	}

	// Realtime dispatcher; change streams are optional because they need a
	// replica set.
	dispatcher := realtime.NewDispatcher()
	if os.Getenv("WATCH_CHANGE_STREAMS") == "true" {
		dispatcher.Watch(ctx, db,
			"projects", "project_stages", "tasks", "messages", "activity_logs", "files", "support_tickets")
	}

	// Authorization
	roleStore := auth.NewRoleStore(&auth.MongoRolesSource{Collection: db.Collection("user_roles")})

	// Notification fan-out breaker
	notificationBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "notifications",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Warnf("Event ID: BREAKER_STATE_CHANGED, Description: Circuit breaker %s moved from %s to %s.", name, from, to)
		},
	})

	// Services
	activityService := services.NewActivityService(db.Collection("activity_logs"), dispatcher)
	notificationService := services.NewNotificationService(notificationRepo, dispatcher)
	notifier := services.NewBreakerNotifier(notificationBreaker, notificationService)
	workflowService := services.NewWorkflowService(driver)
	projectService := services.NewProjectService(db, activityService, workflowService, blobStore, dispatcher)
	taskService := services.NewTaskService(db, activityService, workflowService, notifier, dispatcher)
	messageService := services.NewMessageService(db, notifier, dispatcher)
	fileService := services.NewFileService(db, blobStore, dispatcher)
	supportService := services.NewSupportService(db, notifier)
	userService := services.NewUserService(client, db, roleStore)

	// Handlers
	loginHandler := handlers.NewLoginHandler(userService)
	userHandler := handlers.NewUserHandler(userService, roleStore)
	projectHandler := handlers.NewProjectHandler(projectService, roleStore)
	taskHandler := handlers.NewTaskHandler(taskService, workflowService, roleStore)
	messageHandler := handlers.NewMessageHandler(messageService, roleStore)
	notificationHandler := handlers.NewNotificationHandler(notificationService, roleStore)
	activityHandler := handlers.NewActivityHandler(activityService, roleStore)
	supportHandler := handlers.NewSupportHandler(supportService, roleStore)
	fileHandler := handlers.NewFileHandler(fileService, roleStore)
	functionsHandler := handlers.NewFunctionsHandler(userService, taskService, roleStore)

	r := mux.NewRouter()

	// Public auth endpoints
	r.HandleFunc("/auth/register", loginHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", loginHandler.Login).Methods("POST")
	r.HandleFunc("/auth/password-reset/request", loginHandler.RequestPasswordReset).Methods("POST")
	r.HandleFunc("/auth/password-reset/confirm", loginHandler.ResetPassword).Methods("POST")

	// Everything else requires a valid token
	api := r.NewRoute().Subrouter()
	api.Use(middleware.Authenticate)

	api.HandleFunc("/auth/logout", loginHandler.Logout).Methods("POST")
	api.HandleFunc("/users/me", userHandler.Me).Methods("GET")
	api.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PATCH")
	api.HandleFunc("/users/me/password", userHandler.ChangePassword).Methods("PUT")
	api.HandleFunc("/admin/users", userHandler.ListUsers).Methods("GET")
	api.HandleFunc("/admin/users/{userId}/role", userHandler.ChangeRole).Methods("PUT")
	api.HandleFunc("/admin/users/{userId}", userHandler.DeleteUser).Methods("DELETE")

	api.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects/status-counts", projectHandler.StatusCounts).Methods("GET")
	api.HandleFunc("/projects/{projectId}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{projectId}", projectHandler.Update).Methods("PUT")
	api.HandleFunc("/projects/{projectId}", projectHandler.Delete).Methods("DELETE")

	api.HandleFunc("/projects/{projectId}/stages", projectHandler.CreateStage).Methods("POST")
	api.HandleFunc("/projects/{projectId}/stages", projectHandler.Stages).Methods("GET")
	api.HandleFunc("/stages/{stageId}", projectHandler.UpdateStage).Methods("PUT")
	api.HandleFunc("/stages/{stageId}", projectHandler.DeleteStage).Methods("DELETE")

	api.HandleFunc("/projects/{projectId}/tasks", taskHandler.Create).Methods("POST")
	api.HandleFunc("/projects/{projectId}/tasks", taskHandler.ByProject).Methods("GET")
	api.HandleFunc("/tasks/{taskId}", taskHandler.Get).Methods("GET")
	api.HandleFunc("/tasks/{taskId}", taskHandler.Update).Methods("PUT")
	api.HandleFunc("/tasks/{taskId}/status", taskHandler.ChangeStatus).Methods("PATCH")
	api.HandleFunc("/tasks/{taskId}", taskHandler.Delete).Methods("DELETE")
	api.HandleFunc("/tasks/{taskId}/dependencies", taskHandler.AddDependency).Methods("POST")
	api.HandleFunc("/tasks/{taskId}/dependencies", taskHandler.Dependencies).Methods("GET")
	api.HandleFunc("/tasks/{taskId}/dependencies/{dependsOnId}", taskHandler.RemoveDependency).Methods("DELETE")

	api.HandleFunc("/projects/{projectId}/messages", messageHandler.Post).Methods("POST")
	api.HandleFunc("/projects/{projectId}/messages", messageHandler.ByProject).Methods("GET")

	api.HandleFunc("/projects/{projectId}/activity", activityHandler.ByProject).Methods("GET")

	api.HandleFunc("/projects/{projectId}/files", fileHandler.Upload).Methods("POST")
	api.HandleFunc("/projects/{projectId}/files/link", fileHandler.AddLink).Methods("POST")
	api.HandleFunc("/projects/{projectId}/files", fileHandler.ByProject).Methods("GET")
	api.HandleFunc("/files/{fileId}/download", fileHandler.Download).Methods("GET")
	api.HandleFunc("/files/{fileId}", fileHandler.Delete).Methods("DELETE")

	api.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	api.HandleFunc("/notifications/unread-count", notificationHandler.UnreadCount).Methods("GET")
	api.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("PUT")
	api.HandleFunc("/notifications/{notificationId}/read", notificationHandler.MarkRead).Methods("PUT")
	api.HandleFunc("/notifications/{notificationId}", notificationHandler.Delete).Methods("DELETE")

	api.HandleFunc("/support/tickets", supportHandler.Open).Methods("POST")
	api.HandleFunc("/support/tickets", supportHandler.Mine).Methods("GET")
	api.HandleFunc("/admin/support/tickets", supportHandler.All).Methods("GET")
	api.HandleFunc("/admin/support/tickets/{ticketId}", supportHandler.Update).Methods("PUT")

	api.HandleFunc("/functions/list-users", functionsHandler.ListUsers).Methods("POST")
	api.HandleFunc("/functions/task-operations", functionsHandler.TaskOperations).Methods("POST")

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      middleware.CORS(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Logger.Infof("Event ID: SERVER_STARTED, Description: Server running on port %s.", port)
	log.Println("Server running on http://localhost:" + port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Logger.Fatalf("Event ID: SERVER_FAILED, Description: Server stopped: %v", err)
	}
}
