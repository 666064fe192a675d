// Package auth 后台管理员登录与 JWT 校验。
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"food_order/internal/model"
	"food_order/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidToken = errors.New("invalid token")
	ErrInactive     = errors.New("admin account is disabled")
)

type Repo interface {
	AdminByUsername(ctx context.Context, username string) (*model.Admin, error)
	AdminByID(ctx context.Context, id uint) (*model.Admin, error)
	EnsureAdmin(ctx context.Context, a *model.Admin) error
}

// Claims JWT 负载；Subject 为管理员 id。
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Principal 已认证的管理员。
type Principal struct {
	AdminID  uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Admin     *model.Admin `json:"admin"`
}

type Service struct {
	repo   Repo
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo Repo, secret []byte, ttl time.Duration) *Service {
	return &Service{repo: repo, secret: secret, ttl: ttl, now: time.Now}
}

// Login 校验用户名密码并签发 HS256 token。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	a, err := s.repo.AdminByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCreds
	}
	if !a.IsActive {
		return nil, ErrInactive
	}

	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Username: a.Username,
		Role:     a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(a.ID), 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{Token: signed, ExpiresAt: exp, Admin: a}, nil
}

// Validate 解析 token；只接受 HS256。
func (s *Service) Validate(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	return &Principal{AdminID: uint(id), Username: claims.Username, Role: claims.Role}, nil
}

// Seed 启动时确保配置中的管理员存在；已存在则不改密码。
func (s *Service) Seed(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.EnsureAdmin(ctx, &model.Admin{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     username,
		Role:         "admin",
		IsActive:     true,
	})
}
