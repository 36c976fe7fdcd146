package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"telechat/infrastructure/cache"
	"telechat/internal/entity"
	"telechat/internal/repository"
	"telechat/pkg/jwt"
	"telechat/pkg/snowflake"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrAccountDisabled     = errors.New("account is disabled")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotWhitelisted      = errors.New("token is not whitelisted")
)

// whitelistKey holds the revocation whitelist entry written on every
// login/refresh and deleted on logout. The gate checks its presence,
// not just token validity, so logout revokes still-unexpired tokens.
func whitelistKey(userId int64) string {
	return fmt.Sprintf("user:token:%d", userId)
}

type AuthUsecase interface {
	Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error)
	Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (entity.AuthResponse, error)
	Logout(ctx context.Context, userId int64) error
	// Authenticate is the gate in front of the delivery subsystem: the
	// token must parse, be an access token, and have a live whitelist
	// entry.
	Authenticate(ctx context.Context, accessToken string) (*entity.TokenClaims, error)
}

type authUsecase struct {
	userRepo    repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
	tokens      *jwt.Manager
	store       cache.Store
	gen         *snowflake.Generator
	log         *zap.Logger
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	tokens *jwt.Manager,
	store cache.Store,
	gen *snowflake.Generator,
	log *zap.Logger,
) AuthUsecase {
	return &authUsecase{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		store:       store,
		gen:         gen,
		log:         log,
	}
}

func (u *authUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return entity.AuthResponse{}, ErrInvalidCredentials
	}
	if req.Password != req.ConfirmPassword {
		return entity.AuthResponse{}, ErrPasswordMismatch
	}

	taken, err := u.userRepo.ExistsByName(ctx, req.Username)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if taken {
		return entity.AuthResponse{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	id, err := u.gen.Next()
	if err != nil {
		return entity.AuthResponse{}, err
	}
	now := time.Now()
	user := entity.User{
		Id:        id,
		Name:      req.Username,
		Handle:    "@" + req.Username,
		Password:  string(hash),
		Status:    entity.UserStatusOnline,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return entity.AuthResponse{}, err
	}

	u.log.Info("user registered", zap.Int64("userId", user.Id), zap.String("name", user.Name))
	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	user, err := u.userRepo.GetByName(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.AuthResponse{}, ErrInvalidCredentials
		}
		return entity.AuthResponse{}, err
	}

	principal := PrincipalOf(user)
	if !principal.Enabled {
		return entity.AuthResponse{}, ErrAccountDisabled
	}
	if !principal.VerifyPassword(req.Password) {
		return entity.AuthResponse{}, ErrInvalidCredentials
	}

	if err := u.userRepo.UpdateStatus(ctx, user.Id, entity.UserStatusOnline); err != nil {
		u.log.Warn("status mirror failed on login", zap.Error(err))
	}

	u.log.Info("user logged in", zap.Int64("userId", user.Id))
	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (entity.AuthResponse, error) {
	claims, err := u.tokens.Parse(refreshToken)
	if err != nil {
		return entity.AuthResponse{}, ErrInvalidRefreshToken
	}
	if claims.TokenType != jwt.TokenTypeRefresh {
		return entity.AuthResponse{}, ErrInvalidRefreshToken
	}

	stored, err := u.refreshRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		return entity.AuthResponse{}, ErrInvalidRefreshToken
	}
	if stored.IsRevoked || time.Now().After(stored.ExpiresAt) {
		return entity.AuthResponse{}, ErrInvalidRefreshToken
	}

	user, err := u.userRepo.Get(ctx, claims.UserId)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	accessToken, err := u.tokens.GenerateAccessToken(user.Id, user.Name)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if err := u.whitelist(ctx, user.Id, accessToken); err != nil {
		return entity.AuthResponse{}, err
	}

	user.Password = ""
	return entity.AuthResponse{
		AccessToken: accessToken,
		// the refresh token stays valid until logout or expiry
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, userId int64) error {
	if err := u.store.Del(ctx, whitelistKey(userId)); err != nil {
		return err
	}
	if err := u.refreshRepo.RevokeAllByUserId(ctx, userId); err != nil {
		u.log.Warn("refresh token revocation failed", zap.Int64("userId", userId), zap.Error(err))
	}
	if err := u.userRepo.UpdateStatus(ctx, userId, entity.UserStatusOffline); err != nil {
		u.log.Warn("status mirror failed on logout", zap.Error(err))
	}
	u.log.Info("user logged out", zap.Int64("userId", userId))
	return nil
}

func (u *authUsecase) Authenticate(ctx context.Context, accessToken string) (*entity.TokenClaims, error) {
	claims, err := u.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		return nil, jwt.ErrInvalidToken
	}

	// a valid signature is not enough: logout removes the whitelist
	// entry, which revokes every outstanding access token
	ok, err := u.store.Exists(ctx, whitelistKey(claims.UserId))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotWhitelisted
	}
	return claims, nil
}

func (u *authUsecase) issueTokens(ctx context.Context, user entity.User) (entity.AuthResponse, error) {
	accessToken, err := u.tokens.GenerateAccessToken(user.Id, user.Name)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	refreshToken, err := u.tokens.GenerateRefreshToken(user.Id, user.Name)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	if err := u.refreshRepo.Create(ctx, entity.RefreshToken{
		UserId:    user.Id,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(u.tokens.RefreshTTL()),
	}); err != nil {
		return entity.AuthResponse{}, err
	}

	if err := u.whitelist(ctx, user.Id, accessToken); err != nil {
		return entity.AuthResponse{}, err
	}

	user.Password = ""
	return entity.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

func (u *authUsecase) whitelist(ctx context.Context, userId int64, token string) error {
	return u.store.SetTTL(ctx, whitelistKey(userId), token, u.tokens.AccessTTL())
}
