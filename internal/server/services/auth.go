package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/ratelimit"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventpass/internal/server/storage"
	"github.com/google/uuid"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidAdminSecret = "Invalid admin secret"
	msgTooManyAttempts    = "Too many login attempts"
	msgEmailTaken         = "User with this email already exists"
	msgUserNotFound       = "User not found"

	// SystemOperational and SystemUnknown are the dashboard health values.
	SystemOperational = "Operational"
	SystemUnknown     = "Unknown"

	recentActivityLimit = 10
	activeUserWindow    = 24 * time.Hour
)

// AuthResult is returned by every successful authentication.
type AuthResult struct {
	AccessToken string            `json:"accessToken"`
	User        models.PublicUser `json:"user"`
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Email             string              `json:"email"`
	Password          string              `json:"password"`
	FirstName         string              `json:"firstName"`
	LastName          string              `json:"lastName"`
	PhoneNumber       *string             `json:"phoneNumber,omitempty"`
	PhoneRegion       *string             `json:"phoneRegion,omitempty"`
	SessionType       *models.SessionType `json:"sessionType,omitempty"`
	BiometricEnabled  *bool               `json:"biometricEnabled,omitempty"`
	ProfilePictureURL *string             `json:"profilePictureUrl,omitempty"`
}

// AdminInput provisions an admin account.
type AdminInput struct {
	Email       string
	Password    string
	AdminSecret string
	FirstName   string
	LastName    string
}

// AuthService handles registration, user and admin login, the admin
// dashboard, and profile maintenance.
type AuthService struct {
	repomanager repomanager.RepositoryManager
	tokens      TokenIssuer
	hasher      PasswordHasher
	limiter     ratelimit.Limiter
	pictures    PictureStore
	logger      logging.Logger

	accessTokenValidityDuration time.Duration
	adminTokenValidityDuration  time.Duration

	now func() time.Time
}

// NewAuthService wires an AuthService. limiter and pictures may be nil.
func NewAuthService(m repomanager.RepositoryManager, tokens TokenIssuer, hasher PasswordHasher,
	limiter ratelimit.Limiter, pictures PictureStore, cfg *config.Config, logger logging.Logger) *AuthService {
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	return &AuthService{
		repomanager:                 m,
		tokens:                      tokens,
		hasher:                      hasher,
		limiter:                     limiter,
		pictures:                    pictures,
		logger:                      logger.With("module", "auth"),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		adminTokenValidityDuration:  cfg.AdminTokenValidityDuration,
		now:                         nowUTC,
	}
}

func validatePassword(p string) error {
	if p == "" {
		return badRequest("Password is required")
	}
	if len(p) > auth.MaxPasswordBytes {
		return badRequest("Password must be at most 72 bytes")
	}
	return nil
}

func validateNames(first, last string) error {
	if first == "" || last == "" {
		return badRequest("First name and last name are required")
	}
	return nil
}

func (in *RegisterInput) normalize() error {
	in.Email = models.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.PhoneNumber = trimmed(in.PhoneNumber)
	in.PhoneRegion = trimmed(in.PhoneRegion)
	in.ProfilePictureURL = trimmed(in.ProfilePictureURL)

	if !validEmail(in.Email) {
		return badRequest("Invalid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if err := validateNames(in.FirstName, in.LastName); err != nil {
		return err
	}
	if in.SessionType != nil && !in.SessionType.Valid() {
		return badRequest("Invalid session type")
	}
	return nil
}

// Register creates a user with role user and returns a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.repomanager.DB())

	if _, err := repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, common.NewError(common.KindConflict, msgEmailTaken)
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, salt, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &models.User{
		ID:                uuid.NewString(),
		Email:             in.Email,
		PasswordHash:      hash,
		PasswordSalt:      salt,
		Role:              models.RoleUser,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		FullName:          models.FullNameOf(in.FirstName, in.LastName),
		PhoneNumber:       in.PhoneNumber,
		PhoneRegion:       in.PhoneRegion,
		ProfilePictureURL: in.ProfilePictureURL,
		SessionType:       models.SessionTypeSession,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.SessionType != nil {
		u.SessionType = *in.SessionType
	}
	if in.BiometricEnabled != nil {
		u.BiometricEnabled = *in.BiometricEnabled
	}

	if _, err := repo.Create(ctx, u); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.NewError(common.KindConflict, msgEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return s.issue(u, s.accessTokenValidityDuration, false)
}

// allowAttempt consults the limiter. Limiter failures are logged and the
// attempt is allowed.
func (s *AuthService) allowAttempt(ctx context.Context, key string) error {
	ok, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
		return nil
	}
	if !ok {
		return common.NewError(common.KindTooManyRequests, msgTooManyAttempts)
	}
	return nil
}

func (s *AuthService) resetAttempts(ctx context.Context, key string) {
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn(ctx, "login limiter reset failed", "error", err)
	}
}

// Login verifies email and password. Unknown email and wrong password yield
// the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	email = models.NormalizeEmail(email)
	if err := s.allowAttempt(ctx, "user:"+email); err != nil {
		return nil, err
	}

	u, err := s.repomanager.Users(s.repomanager.DB()).GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.hasher.CheckDummy(password)
			return nil, common.NewError(common.KindUnauthorized, msgInvalidCredentials)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		return nil, common.NewError(common.KindUnauthorized, msgInvalidCredentials)
	}

	s.resetAttempts(ctx, "user:"+email)
	if err := s.touchLastLogin(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u, s.accessTokenValidityDuration, false)
}

// AdminLogin checks, in order: an admin account with this email, its
// password, then its admin secret. The first two failures are reported
// identically.
func (s *AuthService) AdminLogin(ctx context.Context, email, password, adminSecret string) (res *AuthResult, err error) {
	ctx, span := startSpan(ctx, "AuthService.AdminLogin")
	defer func() { endSpan(span, err) }()

	email = models.NormalizeEmail(email)
	if err := s.allowAttempt(ctx, "admin:"+email); err != nil {
		return nil, err
	}

	u, err := s.repomanager.Users(s.repomanager.DB()).GetByEmail(ctx, email)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || u.Role != models.RoleAdmin {
		s.hasher.CheckDummy(password)
		s.logger.Warn(ctx, "admin login rejected", "reason", "no admin account")
		return nil, common.NewError(common.KindUnauthorized, msgInvalidCredentials)
	}

	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		s.logger.Warn(ctx, "admin login rejected", "reason", "password", "user_id", u.ID)
		return nil, common.NewError(common.KindUnauthorized, msgInvalidCredentials)
	}

	secretHash := ""
	if u.AdminSecretHash != nil {
		secretHash = *u.AdminSecretHash
	}
	if err := s.hasher.Check(secretHash, adminSecret); err != nil {
		s.logger.Warn(ctx, "admin login rejected", "reason", "admin secret", "user_id", u.ID)
		return nil, common.NewError(common.KindUnauthorized, msgInvalidAdminSecret)
	}

	s.resetAttempts(ctx, "admin:"+email)
	if err := s.touchLastLogin(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u, s.adminTokenValidityDuration, true)
}

func (s *AuthService) touchLastLogin(ctx context.Context, u *models.User) error {
	now := s.now()
	if err := s.repomanager.Users(s.repomanager.DB()).UpdateLastLogin(ctx, u.ID, now); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	u.LastLoginAt = &now
	return nil
}

func (s *AuthService) issue(u *models.User, ttl time.Duration, extended bool) (*AuthResult, error) {
	token, err := s.tokens.Issue(u, ttl, extended)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{AccessToken: token, User: u.Public()}, nil
}

// Dashboard aggregates user statistics at call time.
func (s *AuthService) Dashboard(ctx context.Context) (d *models.Dashboard, err error) {
	ctx, span := startSpan(ctx, "AuthService.Dashboard")
	defer func() { endSpan(span, err) }()

	now := s.now()
	status := SystemOperational
	if err := s.repomanager.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "store probe failed", "error", err)
		status = SystemUnknown
	}

	repo := s.repomanager.Users(s.repomanager.DB())

	total, err := repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	active, err := repo.CountActiveSince(ctx, now.Add(-activeUserWindow))
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}
	recent, err := repo.RecentLogins(ctx, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("recent logins: %w", err)
	}

	activity := make([]string, 0, len(recent))
	for _, u := range recent {
		activity = append(activity, fmt.Sprintf("%s (%s) logged in at %s",
			u.Email, u.Role, u.LastLoginAt.UTC().Format(time.RFC3339)))
	}

	return &models.Dashboard{
		TotalUsers:     total,
		ActiveUsers:    active,
		RecentActivity: activity,
		SystemStatus:   status,
		LastUpdated:    now,
	}, nil
}

// Logout acknowledges a logout. Tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.logger.Info(ctx, "user logged out", "user_id", userID)
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context, userID string) (u *models.PublicUser, err error) {
	ctx, span := startSpan(ctx, "AuthService.Me")
	defer func() { endSpan(span, err) }()

	user, err := s.getUser(ctx, s.repomanager.DB(), userID)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) getUser(ctx context.Context, db dbx.DBTX, userID string) (*models.User, error) {
	u, err := s.repomanager.Users(db).GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.NewError(common.KindNotFound, msgUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateProfilePicture overwrites the caller's picture reference.
func (s *AuthService) UpdateProfilePicture(ctx context.Context, userID, url string) (u *models.PublicUser, err error) {
	ctx, span := startSpan(ctx, "AuthService.UpdateProfilePicture")
	defer func() { endSpan(span, err) }()

	url = strings.TrimSpace(url)
	if url == "" {
		return nil, badRequest("Profile picture URL is required")
	}

	return s.updateUser(ctx, userID, func(user *models.User) error {
		user.ProfilePictureURL = &url
		return nil
	})
}

// UpdateProfile applies the non-nil fields of upd. Role cannot be changed
// here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (u *models.PublicUser, err error) {
	ctx, span := startSpan(ctx, "AuthService.UpdateProfile")
	defer func() { endSpan(span, err) }()

	return s.updateUser(ctx, userID, func(user *models.User) error {
		if upd.FirstName != nil {
			user.FirstName = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			user.LastName = strings.TrimSpace(*upd.LastName)
		}
		if err := validateNames(user.FirstName, user.LastName); err != nil {
			return err
		}
		if upd.PhoneNumber != nil {
			user.PhoneNumber = trimmed(upd.PhoneNumber)
		}
		if upd.PhoneRegion != nil {
			user.PhoneRegion = trimmed(upd.PhoneRegion)
		}
		if upd.SessionType != nil {
			if !upd.SessionType.Valid() {
				return badRequest("Invalid session type")
			}
			user.SessionType = *upd.SessionType
		}
		if upd.BiometricEnabled != nil {
			user.BiometricEnabled = *upd.BiometricEnabled
		}
		user.FullName = models.FullNameOf(user.FirstName, user.LastName)
		return nil
	})
}

func (s *AuthService) updateUser(ctx context.Context, userID string, apply func(*models.User) error) (*models.PublicUser, error) {
	var updated *models.User
	err := s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := apply(user); err != nil {
			return err
		}
		user.UpdatedAt = s.now()
		if err := s.repomanager.Users(tx).Update(ctx, user); err != nil {
			if isNotFound(err) {
				return common.NewError(common.KindNotFound, msgUserNotFound)
			}
			return fmt.Errorf("update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	pub := updated.Public()
	return &pub, nil
}

// ProfilePictureUploadURL presigns an upload for the caller's picture. The
// client stores the returned key through UpdateProfilePicture.
func (s *AuthService) ProfilePictureUploadURL(ctx context.Context, userID string) (up *storage.Upload, err error) {
	ctx, span := startSpan(ctx, "AuthService.ProfilePictureUploadURL")
	defer func() { endSpan(span, err) }()

	if s.pictures == nil {
		return nil, errPicturesDisabled
	}
	if _, err := s.getUser(ctx, s.repomanager.DB(), userID); err != nil {
		return nil, err
	}
	up, err = s.pictures.UploadURL(ctx, "users/"+userID)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return up, nil
}

// ProfilePictureDownloadURL returns a fetchable URL for the caller's picture.
func (s *AuthService) ProfilePictureDownloadURL(ctx context.Context, userID string) (d *storage.Download, err error) {
	ctx, span := startSpan(ctx, "AuthService.ProfilePictureDownloadURL")
	defer func() { endSpan(span, err) }()

	user, err := s.getUser(ctx, s.repomanager.DB(), userID)
	if err != nil {
		return nil, err
	}
	return pictureDownload(ctx, s.pictures, user.ProfilePictureURL, "users/"+userID)
}

// ProvisionAdmin creates an admin account, or promotes an existing account
// and resets its password and admin secret.
func (s *AuthService) ProvisionAdmin(ctx context.Context, in AdminInput) (u *models.PublicUser, err error) {
	ctx, span := startSpan(ctx, "AuthService.ProvisionAdmin")
	defer func() { endSpan(span, err) }()

	in.Email = models.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if !validEmail(in.Email) {
		return nil, badRequest("Invalid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.AdminSecret == "" {
		return nil, badRequest("Admin secret is required")
	}
	if len(in.AdminSecret) > auth.MaxPasswordBytes {
		return nil, badRequest("Admin secret must be at most 72 bytes")
	}

	passHash, passSalt, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	secretHash, secretSalt, err := s.hasher.Hash(in.AdminSecret)
	if err != nil {
		return nil, fmt.Errorf("hash admin secret: %w", err)
	}

	var result *models.User
	err = s.repomanager.TxRunner().RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		now := s.now()

		user, err := repo.GetByEmail(ctx, in.Email)
		created := false
		switch {
		case isNotFound(err):
			created = true
			if err := validateNames(in.FirstName, in.LastName); err != nil {
				return err
			}
			user = &models.User{
				ID:          uuid.NewString(),
				Email:       in.Email,
				FirstName:   in.FirstName,
				LastName:    in.LastName,
				SessionType: models.SessionTypeSession,
				CreatedAt:   now,
			}
		case err != nil:
			return fmt.Errorf("lookup user: %w", err)
		default:
			if in.FirstName != "" {
				user.FirstName = in.FirstName
			}
			if in.LastName != "" {
				user.LastName = in.LastName
			}
		}

		user.Role = models.RoleAdmin
		user.PasswordHash, user.PasswordSalt = passHash, passSalt
		user.AdminSecretHash, user.AdminSecretSalt = &secretHash, &secretSalt
		user.FullName = models.FullNameOf(user.FirstName, user.LastName)
		user.UpdatedAt = now

		if created {
			if _, err := repo.Create(ctx, user); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
		} else if err := repo.Update(ctx, user); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "admin provisioned", "user_id", result.ID)
	pub := result.Public()
	return &pub, nil
}
