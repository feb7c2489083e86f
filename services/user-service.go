package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserService struct {
	client          *mongo.Client
	usersCollection *mongo.Collection
	rolesCollection *mongo.Collection
	roleStore       *auth.RoleStore
}

func NewUserService(client *mongo.Client, db *mongo.Database, roleStore *auth.RoleStore) *UserService {
	return &UserService{
		client:          client,
		usersCollection: db.Collection("users"),
		rolesCollection: db.Collection("user_roles"),
		roleStore:       roleStore,
	}
}

// Register creates a profile together with its default role assignment in
// one transaction, so a signed-up principal never exists without a role.
// Standalone deployments have no replica set and therefore no transactions;
// those fall back to sequential inserts with cleanup on failure.
func (s *UserService) Register(ctx context.Context, email, fullName, password string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", utils.ErrValidation)
	}
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", utils.ErrValidation)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}

	if err := s.usersCollection.FindOne(ctx, bson.M{"email": email}).Err(); err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", utils.ErrValidation)
	} else if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to check existing user: %v", err)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	profile := models.Profile{
		ID:        primitive.NewObjectID(),
		Email:     email,
		FullName:  html.EscapeString(fullName),
		Password:  hashed,
		CreatedAt: time.Now(),
	}

	if err := s.registerTransactional(ctx, profile); err != nil {
		if !transactionsUnsupported(err) {
			return nil, fmt.Errorf("failed to register user: %v", err)
		}
		logging.Logger.Warnf("Event ID: REGISTER_NO_TRANSACTIONS, Description: Deployment does not support transactions, registering user %s sequentially.", profile.ID.Hex())
		if err := s.registerSequential(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to register user: %v", err)
		}
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: User %s registered with role %s.", profile.ID.Hex(), models.DefaultRole)
	return &profile, nil
}

func defaultAssignment(profile models.Profile) models.RoleAssignment {
	return models.RoleAssignment{
		ID:     primitive.NewObjectID(),
		UserID: profile.ID.Hex(),
		Role:   models.DefaultRole,
	}
}

func (s *UserService) registerTransactional(ctx context.Context, profile models.Profile) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.usersCollection.InsertOne(sc, profile); err != nil {
			return nil, err
		}
		if _, err := s.rolesCollection.InsertOne(sc, defaultAssignment(profile)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// registerSequential is the path for deployments without transaction
// support. The profile insert is undone when the role insert fails so the
// never-without-a-role invariant still holds.
func (s *UserService) registerSequential(ctx context.Context, profile models.Profile) error {
	if _, err := s.usersCollection.InsertOne(ctx, profile); err != nil {
		return err
	}
	if _, err := s.rolesCollection.InsertOne(ctx, defaultAssignment(profile)); err != nil {
		if _, cleanupErr := s.usersCollection.DeleteOne(ctx, bson.M{"_id": profile.ID}); cleanupErr != nil {
			logging.Logger.Errorf("Event ID: REGISTER_CLEANUP_FAILED, Description: Failed to remove profile %s after role insert failure: %v", profile.ID.Hex(), cleanupErr)
		}
		return err
	}
	return nil
}

// transactionsUnsupported reports whether the error means the deployment
// cannot run multi-document transactions at all (standalone mongod, no
// replica set). Server code 20 is IllegalOperation, which standalone
// servers return for transaction numbers.
func transactionsUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 20 {
		return true
	}
	return strings.Contains(err.Error(), "Transaction numbers are only allowed on a replica set")
}

// Login checks the credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var profile models.Profile
	if err := s.usersCollection.FindOne(ctx, bson.M{"email": email}).Decode(&profile); err != nil {
		return "", nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthenticated)
	}
	if err := utils.CheckPassword(profile.Password, password); err != nil {
		return "", nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthenticated)
	}

	token, err := utils.GenerateToken(profile.ID.Hex(), profile.Email, profile.FullName)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_LOGIN, Description: User %s logged in.", profile.ID.Hex())
	return token, &profile, nil
}

// Get returns one profile by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", utils.ErrValidation)
	}

	var profile models.Profile
	if err := s.usersCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&profile); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %v", err)
	}
	return &profile, nil
}

// UpdateProfile changes the display name of the calling principal.
func (s *UserService) UpdateProfile(ctx context.Context, userID, fullName string) (*models.Profile, error) {
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", utils.ErrValidation)
	}
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = html.EscapeString(fullName)
	_, err = s.usersCollection.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{"$set": bson.M{"fullName": profile.FullName}})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %v", err)
	}
	return profile, nil
}

// ChangePassword replaces the password of the calling principal after
// confirming the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := utils.CheckPassword(profile.Password, oldPassword); err != nil {
		return fmt.Errorf("%w: old password is incorrect", utils.ErrUnauthenticated)
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.usersCollection.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{"$set": bson.M{"password": hashed}})
	if err != nil {
		return fmt.Errorf("failed to change password: %v", err)
	}
	return nil
}

// RequestPasswordReset mails a short-lived reset code to the account email.
// Unknown emails are not revealed to the caller.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var profile models.Profile
	if err := s.usersCollection.FindOne(ctx, bson.M{"email": email}).Decode(&profile); err != nil {
		logging.Logger.Infof("Event ID: RESET_REQUEST_IGNORED, Description: Password reset requested for unknown email.")
		return nil
	}

	code, err := utils.GenerateResetCode()
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %v", err)
	}
	expiry := time.Now().Add(15 * time.Minute)

	_, err = s.usersCollection.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{"$set": bson.M{
		"resetCode":   code,
		"resetExpiry": expiry,
	}})
	if err != nil {
		return fmt.Errorf("failed to store reset code: %v", err)
	}

	subject := "Your password reset code"
	body := fmt.Sprintf("Your password reset code is %s. It expires in 15 minutes.", code)
	if err := utils.SendEmail(profile.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}

// ResetPassword sets a new password when the reset code matches and has not
// expired. The code is single-use.
func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var profile models.Profile
	if err := s.usersCollection.FindOne(ctx, bson.M{"email": email}).Decode(&profile); err != nil {
		return fmt.Errorf("%w: invalid reset code", utils.ErrValidation)
	}
	if profile.ResetCode == "" || profile.ResetCode != code || time.Now().After(profile.ResetExpiry) {
		return fmt.Errorf("%w: invalid or expired reset code", utils.ErrValidation)
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.usersCollection.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{
		"$set":   bson.M{"password": hashed},
		"$unset": bson.M{"resetCode": "", "resetExpiry": ""},
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %v", err)
	}

	logging.Logger.Infof("Event ID: PASSWORD_RESET, Description: Password reset completed for user %s.", profile.ID.Hex())
	return nil
}

// ListUsers returns every profile merged with its role, for the admin user
// management view.
func (s *UserService) ListUsers(ctx context.Context) ([]models.UserWithRole, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.usersCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %v", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}

	roleCursor, err := s.rolesCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve roles: %v", err)
	}
	defer roleCursor.Close(ctx)

	var assignments []models.RoleAssignment
	if err := roleCursor.All(ctx, &assignments); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %v", err)
	}
	rolesByUser := map[string]models.Role{}
	for _, a := range assignments {
		rolesByUser[a.UserID] = a.Role
	}

	users := []models.UserWithRole{}
	for _, p := range profiles {
		role := rolesByUser[p.ID.Hex()]
		if role == "" {
			role = models.DefaultRole
		}
		users = append(users, models.UserWithRole{
			ID:        p.ID.Hex(),
			Email:     p.Email,
			FullName:  p.FullName,
			Role:      string(role),
			CreatedAt: p.CreatedAt,
		})
	}
	return users, nil
}

// ChangeRole reassigns the single role of a principal. The assignment is an
// upsert keyed by user, and the cached role set is invalidated so the change
// takes effect on the next request.
func (s *UserService) ChangeRole(ctx context.Context, userID string, role models.Role) error {
	if !models.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", utils.ErrValidation, role)
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	assignment := models.RoleAssignment{UserID: userID, Role: role}
	if _, err := s.rolesCollection.ReplaceOne(ctx, bson.M{"userId": userID}, assignment, opts); err != nil {
		return fmt.Errorf("failed to change role: %v", err)
	}

	s.roleStore.Invalidate(userID)
	logging.Logger.Infof("Event ID: ROLE_CHANGED, Description: User %s reassigned to role %s.", userID, role)
	return nil
}

// DeleteUser removes a profile and its role assignments. Admins cannot
// delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, adminID, userID string) error {
	if adminID == userID {
		return fmt.Errorf("%w: administrators cannot delete their own account", utils.ErrValidation)
	}
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.usersCollection.DeleteOne(ctx, bson.M{"_id": profile.ID}); err != nil {
		return fmt.Errorf("failed to delete user: %v", err)
	}
	if _, err := s.rolesCollection.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		logging.Logger.Errorf("Event ID: ROLE_CLEANUP_FAILED, Description: Failed to delete role assignments of user %s: %v", userID, err)
	}

	s.roleStore.Invalidate(userID)
	logging.Logger.Infof("Event ID: USER_DELETED, Description: User %s deleted by admin %s.", userID, adminID)
	return nil
}
